package bptree

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/novadb/novadb/internal/storage"
	"github.com/novadb/novadb/internal/txn"
)

// RID synthesizes a record id from a bare key, for callers (the shell,
// InsertFromFile) that have no real heap-file slot to point at.
func RID(key KeyType) txn.RID {
	return txn.RID{PageID: storage.PageID(key), Slot: 0}
}

// InsertFromFile reads one integer key per line from path and inserts
// each with an RID synthesized from the key itself (PageID(key), slot
// 0), matching the reference implementation's test-fixture convention
// (spec.md §6). Intended for tests and the shell's "load" command, not
// production code paths.
func InsertFromFile(t *Tree, path string) error {
	keys, err := readKeysFromFile(path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := t.Insert(key, RID(key)); err != nil {
			return fmt.Errorf("bptree: insert key %d from %s: %w", key, path, err)
		}
	}
	return nil
}

// RemoveFromFile reads one integer key per line from path and removes
// each.
func RemoveFromFile(t *Tree, path string) error {
	keys, err := readKeysFromFile(path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := t.Remove(key); err != nil {
			return fmt.Errorf("bptree: remove key %d from %s: %w", key, path, err)
		}
	}
	return nil
}

func readKeysFromFile(path string) ([]KeyType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bptree: open %s: %w", path, err)
	}
	defer f.Close()

	var keys []KeyType
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bptree: parse key %q in %s: %w", line, path, err)
		}
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bptree: read %s: %w", path, err)
	}
	return keys, nil
}

// DebugString renders the tree's structure leaf-by-leaf, page ids and
// keys only, for test assertions and the shell's "dump" command.
// Grounded on the teacher's LeafNode.DebugDump in idiom, adapted to
// this package's flat page layout.
func (t *Tree) DebugString() (string, error) {
	rootID, err := t.getRootPageID()
	if err != nil {
		return "", err
	}
	if rootID == storage.InvalidPageID {
		return "(empty)\n", nil
	}

	var b strings.Builder
	if err := t.debugNode(&b, rootID, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (t *Tree) debugNode(b *strings.Builder, id storage.PageID, depth int) error {
	p, err := t.bp.FetchPage(id)
	if err != nil {
		return err
	}
	p.RLatch()
	indent := strings.Repeat("  ", depth)

	if IsLeaf(p) {
		lp := AsLeaf(p)
		fmt.Fprintf(b, "%sleaf(page=%d, size=%d, next=%d): ", indent, id, lp.Size(), lp.NextPageID())
		for i := 0; i < lp.Size(); i++ {
			fmt.Fprintf(b, "%d ", lp.KeyAt(i))
		}
		fmt.Fprintln(b)
		p.RUnlatch()
		t.bp.UnpinPage(id, false)
		return nil
	}

	ip := AsInternal(p)
	fmt.Fprintf(b, "%sinternal(page=%d, size=%d): ", indent, id, ip.Size())
	children := make([]storage.PageID, ip.Size())
	for i := 0; i < ip.Size(); i++ {
		if i > 0 {
			fmt.Fprintf(b, "%d ", ip.KeyAt(i))
		}
		children[i] = ip.ValueAt(i)
	}
	fmt.Fprintln(b)
	p.RUnlatch()
	t.bp.UnpinPage(id, false)

	for _, childID := range children {
		if err := t.debugNode(b, childID, depth+1); err != nil {
			return err
		}
	}
	return nil
}
