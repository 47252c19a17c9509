// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package structure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"
)

func fixedDomain[T any](values ...T) func(Indices) ([]T, error) {
	return func(Indices) ([]T, error) { return values, nil }
}

func readListing(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading listing: %v", err)
	}
	names, err := DecodeListing(data)
	if err != nil {
		t.Fatalf("decoding listing %s: %v", path, err)
	}
	return names
}

func subdirectories(t *testing.T, path string) []string {
	t.Helper()
	entries, err := os.ReadDir(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func TestIndicesPushDoesNotAlias(t *testing.T) {
	base := NewIndices("v1")
	base = base.Push("DE")

	// Two siblings extend the same parent; neither may see the other.
	first := base.Push("2021-03-01")
	second := base.Push("2021-03-02")

	if got := first.Peek(); got != "2021-03-01" {
		t.Errorf("first.Peek() = %v, want 2021-03-01", got)
	}
	if got := second.Peek(); got != "2021-03-02" {
		t.Errorf("second.Peek() = %v, want 2021-03-02", got)
	}
	if base.Len() != 2 {
		t.Errorf("base.Len() = %d, want 2", base.Len())
	}
	if got := first.Values(); !reflect.DeepEqual(got, []any{"v1", "DE", "2021-03-01"}) {
		t.Errorf("first.Values() = %v", got)
	}
}

func TestTopAndNearest(t *testing.T) {
	indices := NewIndices("v1", "DE", 14)

	hour, err := Top[int](indices)
	if err != nil || hour != 14 {
		t.Fatalf("Top[int] = %d, %v; want 14, nil", hour, err)
	}
	if _, err := Top[string](indices); err == nil {
		t.Error("Top[string] on an int index should fail")
	}
	if _, err := Top[int](Indices{}); err == nil {
		t.Error("Top on empty indices should fail")
	}

	country, ok := Nearest[string](indices)
	if !ok || country != "DE" {
		t.Errorf("Nearest[string] = %q, %v; want DE, true", country, ok)
	}
	if _, ok := Nearest[float64](indices); ok {
		t.Error("Nearest[float64] should not find a value")
	}
}

func TestDirectoryWritesChildrenInOrder(t *testing.T) {
	output := &Output{}
	root := NewDirectory("root",
		NewFile("b", []byte("second")),
		NewFile("a", []byte("first")),
		NewDirectory("nested", NewFile("leaf", []byte("leaf"))),
	)

	dir := t.TempDir()
	if err := Render(context.Background(), root, dir, output); err != nil {
		t.Fatalf("Render: %v", err)
	}

	for path, want := range map[string]string{
		"root/a":           "first",
		"root/b":           "second",
		"root/nested/leaf": "leaf",
	} {
		got, err := os.ReadFile(filepath.Join(dir, path))
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if output.Files() != 3 {
		t.Errorf("Files() = %d, want 3", output.Files())
	}
	if output.Bytes() != int64(len("first")+len("second")+len("leaf")) {
		t.Errorf("Bytes() = %d", output.Bytes())
	}

	names := make([]string, 0, 3)
	for _, child := range root.Children() {
		names = append(names, child.Name())
	}
	if !reflect.DeepEqual(names, []string{"b", "a", "nested"}) {
		t.Errorf("Children() order = %v, want insertion order", names)
	}
}

func TestDirectoryRejectsDuplicateChildren(t *testing.T) {
	root := NewDirectory("root", NewFile("same", nil), NewFile("same", nil))
	err := Render(context.Background(), root, t.TempDir(), &Output{})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Render error = %v, want ErrDuplicateName", err)
	}
}

func TestInvalidNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	if err := ValidateName("2021-03-01"); err != nil {
		t.Errorf("ValidateName(2021-03-01) = %v", err)
	}
}

func TestIndexDirectoryListingMatchesRenderedChildren(t *testing.T) {
	countries := NewIndexDirectory("country", IndexSpec[string]{
		Domain: fixedDomain("FR", "DE", "NL"),
		Format: func(value string) string { return value },
		Child: func(value string, indices Indices) (Node, error) {
			return NewFile("name", []byte(value)), nil
		},
	})
	root := NewIndexing(countries, "index")

	dir := t.TempDir()
	if err := Render(context.Background(), root, dir, &Output{Parallelism: 4}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	listing := readListing(t, filepath.Join(dir, "country", "index"))
	want := []string{"DE", "FR", "NL"}
	if !reflect.DeepEqual(listing, want) {
		t.Errorf("listing = %v, want %v", listing, want)
	}
	if rendered := subdirectories(t, filepath.Join(dir, "country")); !reflect.DeepEqual(rendered, listing) {
		t.Errorf("rendered %v, listing %v", rendered, listing)
	}
	if !reflect.DeepEqual(root.ChildNames(), want) {
		t.Errorf("ChildNames() = %v, want %v", root.ChildNames(), want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "country", "NL", "name"))
	if err != nil || string(data) != "NL" {
		t.Errorf("NL/name = %q, %v", data, err)
	}
}

func TestIndexDirectoryEmptyDomain(t *testing.T) {
	dates := NewIndexDirectory("date", IndexSpec[string]{
		Domain: fixedDomain[string](),
		Format: func(value string) string { return value },
	})
	root := NewIndexing(dates, "index")

	dir := t.TempDir()
	if err := Render(context.Background(), root, dir, &Output{}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "date"))
	if err != nil || !info.IsDir() {
		t.Fatalf("date directory missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "date", "index"))
	if err != nil {
		t.Fatalf("reading listing: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("listing = %q, want []", data)
	}
	if rendered := subdirectories(t, filepath.Join(dir, "date")); len(rendered) != 0 {
		t.Errorf("rendered subdirectories %v, want none", rendered)
	}
}

func TestIndexDirectoryDuplicateNames(t *testing.T) {
	hours := NewIndexDirectory("hour", IndexSpec[int]{
		Domain: fixedDomain(1, 13, 25),
		// Collapses 1 and 25 onto the same name.
		Format: func(value int) string { return strconv.Itoa(value % 24) },
	})
	err := Render(context.Background(), hours, t.TempDir(), &Output{})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Render error = %v, want ErrDuplicateName", err)
	}
}

func TestIndexDirectoryWithoutDomain(t *testing.T) {
	err := Render(context.Background(), NewIndexDirectory[string]("x", IndexSpec[string]{}), t.TempDir(), &Output{})
	if !errors.Is(err, ErrNoDomain) {
		t.Fatalf("Render error = %v, want ErrNoDomain", err)
	}
}

func TestListingCollidingWithChild(t *testing.T) {
	directory := NewIndexDirectory("v", IndexSpec[string]{
		Domain: fixedDomain("index"),
		Format: func(value string) string { return value },
	})
	err := Render(context.Background(), NewIndexing(directory, "index"), t.TempDir(), &Output{})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Render error = %v, want ErrDuplicateName", err)
	}
}

func TestDomainReceivesAncestorContext(t *testing.T) {
	var observed [][]any
	hours := func(value string, indices Indices) (Node, error) {
		return NewIndexDirectory("hour", IndexSpec[int]{
			Domain: func(ancestors Indices) ([]int, error) {
				observed = append(observed, ancestors.Values())
				if value == "2021-03-01" {
					return []int{8, 14}, nil
				}
				return []int{9}, nil
			},
			Format: func(hour int) string { return fmt.Sprintf("%02d", hour) },
		}), nil
	}
	dates := NewIndexDirectory("date", IndexSpec[string]{
		Domain: func(ancestors Indices) ([]string, error) {
			if ancestors.Len() != 1 || ancestors.Peek() != "DE" {
				return nil, fmt.Errorf("unexpected ancestors %v", ancestors.Values())
			}
			return []string{"2021-03-02", "2021-03-01"}, nil
		},
		Format: func(value string) string { return value },
		Child:  hours,
	})

	dir := t.TempDir()
	if err := dates.Prepare(NewIndices("DE")); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := dates.Write(context.Background(), &Output{}, dir); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := [][]any{{"DE", "2021-03-01"}, {"DE", "2021-03-02"}}
	if !reflect.DeepEqual(observed, want) {
		t.Errorf("hour domains observed %v, want %v", observed, want)
	}
	if got := subdirectories(t, filepath.Join(dir, "date", "2021-03-01", "hour")); !reflect.DeepEqual(got, []string{"08", "14"}) {
		t.Errorf("hours of 2021-03-01 = %v", got)
	}
}

func TestAttachedProducers(t *testing.T) {
	versions := NewIndexDirectory("version", IndexSpec[string]{
		Domain: fixedDomain("v1", "v2"),
		Format: func(value string) string { return value },
	})
	versions.Attach(func(string, Indices) (Node, error) {
		return NewFile("configuration", []byte("config")), nil
	})
	versions.Attach(func(value string, indices Indices) (Node, error) {
		if value != "v2" {
			return nil, nil
		}
		return NewFile("statistics", []byte("stats")), nil
	})

	dir := t.TempDir()
	if err := Render(context.Background(), versions, dir, &Output{}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "version", "v1", "configuration")); err != nil {
		t.Errorf("v1/configuration: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "version", "v1", "statistics")); !os.IsNotExist(err) {
		t.Errorf("v1/statistics should be absent, stat error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "version", "v2", "statistics")); err != nil {
		t.Errorf("v2/statistics: %v", err)
	}
}

func TestPrepareIsRepeatable(t *testing.T) {
	var evaluations atomic.Int32
	directory := NewIndexDirectory("hour", IndexSpec[int]{
		Domain: func(Indices) ([]int, error) {
			evaluations.Add(1)
			return []int{3, 1, 2}, nil
		},
		Format: strconv.Itoa,
	})
	indexing := NewIndexing(directory, "index")

	if err := indexing.Prepare(Indices{}); err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	first := string(indexing.Listing())
	if err := indexing.Prepare(Indices{}); err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if second := string(indexing.Listing()); first != second {
		t.Errorf("listing changed between prepares: %s then %s", first, second)
	}
	if first != `["1","2","3"]` {
		t.Errorf("listing = %s", first)
	}
	if evaluations.Load() != 2 {
		t.Errorf("domain evaluated %d times, want once per Prepare", evaluations.Load())
	}
}

func TestLazyFileErrorAbortsRender(t *testing.T) {
	boom := errors.New("signing unavailable")
	directory := NewIndexDirectory("hour", IndexSpec[int]{
		Domain: fixedDomain(1, 2, 3, 4),
		Format: strconv.Itoa,
		Child: func(hour int, indices Indices) (Node, error) {
			return NewLazyFile("payload", func() ([]byte, error) {
				if hour == 3 {
					return nil, boom
				}
				return []byte("ok"), nil
			}), nil
		},
	})

	err := Render(context.Background(), directory, t.TempDir(), &Output{Parallelism: 2})
	if !errors.Is(err, boom) {
		t.Fatalf("Render error = %v, want %v", err, boom)
	}
}

func TestConcurrentWriteRendersEverything(t *testing.T) {
	values := make([]int, 200)
	for i := range values {
		values[i] = i
	}
	directory := NewIndexDirectory("n", IndexSpec[int]{
		Domain: fixedDomain(values...),
		Format: func(value int) string { return fmt.Sprintf("%03d", value) },
		Child: func(value int, indices Indices) (Node, error) {
			return NewLazyFile("value", func() ([]byte, error) {
				return []byte(strconv.Itoa(value)), nil
			}), nil
		},
	})
	output := &Output{Parallelism: 16}
	dir := t.TempDir()
	if err := Render(context.Background(), directory, dir, output); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if output.Files() != int64(len(values)) {
		t.Errorf("Files() = %d, want %d", output.Files(), len(values))
	}
	data, err := os.ReadFile(filepath.Join(dir, "n", "123", "value"))
	if err != nil || string(data) != "123" {
		t.Errorf("n/123/value = %q, %v", data, err)
	}
}

func TestWriteFailsOnMissingParent(t *testing.T) {
	root := NewDirectory("root", NewFile("a", nil))
	err := Render(context.Background(), root, filepath.Join(t.TempDir(), "missing"), &Output{})
	if err == nil {
		t.Fatal("Render into a missing directory should fail")
	}
}
