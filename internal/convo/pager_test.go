// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/morganforge/hud-tui/internal/model"
)

func summariesN(n int) []model.Summary {
	out := make([]model.Summary, n)
	for i := range out {
		out[i] = model.Summary{
			ID:        fmt.Sprintf("conv_%03d", i),
			Name:      fmt.Sprintf("Conversation %d", i),
			UpdatedAt: time.Now().Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestPagerWalksAllPages(t *testing.T) {
	fb := newFakeBackend()
	fb.summaries = summariesN(25)
	p := NewHistoryPager(fb, 10)

	var seen []model.Summary
	for !p.Exhausted() {
		page, err := p.NextPage(context.Background())
		if err != nil {
			t.Fatalf("NextPage failed: %v", err)
		}
		seen = append(seen, page...)
	}

	if len(seen) != 25 {
		t.Fatalf("expected 25 summaries, got %d", len(seen))
	}
	for i, s := range seen {
		if s.ID != fmt.Sprintf("conv_%03d", i) {
			t.Fatalf("page order broken at %d: %s", i, s.ID)
		}
	}
}

func TestPagerExactMultipleOfPageSize(t *testing.T) {
	fb := newFakeBackend()
	fb.summaries = summariesN(20)
	p := NewHistoryPager(fb, 10)

	total := 0
	for i := 0; i < 3 && !p.Exhausted(); i++ {
		page, err := p.NextPage(context.Background())
		if err != nil {
			t.Fatalf("NextPage failed: %v", err)
		}
		total += len(page)
	}
	if total != 20 {
		t.Errorf("expected 20 summaries, got %d", total)
	}
	if !p.Exhausted() {
		t.Error("pager should be exhausted after the trailing empty page")
	}
}

func TestPagerEmptyAfterExhaustion(t *testing.T) {
	fb := newFakeBackend()
	fb.summaries = summariesN(3)
	p := NewHistoryPager(fb, 10)

	if _, err := p.NextPage(context.Background()); err != nil {
		t.Fatalf("NextPage failed: %v", err)
	}
	if !p.Exhausted() {
		t.Fatal("short page should exhaust the pager")
	}

	// Exhausted pagers stay quiet without hitting the backend again.
	fb.mu.Lock()
	fb.listErr = errors.New("must not be called")
	fb.mu.Unlock()
	page, err := p.NextPage(context.Background())
	if err != nil {
		t.Fatalf("NextPage after exhaustion failed: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("expected empty page after exhaustion, got %d", len(page))
	}
}

func TestPagerReset(t *testing.T) {
	fb := newFakeBackend()
	fb.summaries = summariesN(3)
	p := NewHistoryPager(fb, 10)

	if _, err := p.NextPage(context.Background()); err != nil {
		t.Fatalf("NextPage failed: %v", err)
	}
	p.Reset()
	if p.Exhausted() {
		t.Error("reset should rewind exhaustion")
	}
	page, err := p.NextPage(context.Background())
	if err != nil {
		t.Fatalf("NextPage after reset failed: %v", err)
	}
	if len(page) != 3 || page[0].ID != "conv_000" {
		t.Error("reset should restart from the first page")
	}
}

func TestPagerTransportError(t *testing.T) {
	fb := newFakeBackend()
	fb.listErr = errors.New("boom")
	p := NewHistoryPager(fb, 10)

	_, err := p.NextPage(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if p.Exhausted() {
		t.Error("a failed page must not exhaust the pager")
	}
}

func TestPagerDefaultPageSize(t *testing.T) {
	p := NewHistoryPager(newFakeBackend(), 0)
	if p.pageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.pageSize)
	}
}
