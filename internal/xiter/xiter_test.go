// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package xiter_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NickB03/vana/internal/xiter"
)

func drain(t *testing.T, seq func(func(*string, error) bool)) ([]string, []error) {
	t.Helper()
	var vals []string
	var errs []error
	for v, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		vals = append(vals, *v)
	}
	return vals, errs
}

func ptr(s string) *string { return &s }

func TestOnce(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name     string
		fn       func() (*string, error)
		wantVals []string
		wantErr  bool
	}{
		{
			name:     "value",
			fn:       func() (*string, error) { return ptr("a"), nil },
			wantVals: []string{"a"},
		},
		{
			name:    "error",
			fn:      func() (*string, error) { return nil, errBoom },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals, errs := drain(t, xiter.Once(tt.fn))
			if diff := cmp.Diff(tt.wantVals, vals); diff != "" {
				t.Errorf("values mismatch (-want +got):\n%s", diff)
			}
			if got := len(errs) > 0; got != tt.wantErr {
				t.Errorf("error yielded = %v, want %v", got, tt.wantErr)
			}
		})
	}
}

func TestLazy(t *testing.T) {
	calls := 0
	seq := xiter.Lazy(func() ([]*string, error) {
		calls++
		return []*string{ptr("a"), ptr("b"), ptr("c")}, nil
	})
	if calls != 0 {
		t.Fatalf("fn called before iteration")
	}

	var got []string
	for v, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, *v)
		if len(got) == 2 {
			break
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestError(t *testing.T) {
	errBoom := errors.New("boom")
	vals, errs := drain(t, xiter.Error[string](errBoom))
	if len(vals) != 0 || len(errs) != 1 || !errors.Is(errs[0], errBoom) {
		t.Errorf("Error() yielded values %v errors %v", vals, errs)
	}
}
