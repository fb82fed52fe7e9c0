package storage

import (
	"fmt"

	"github.com/novadb/novadb/internal/bx"
)

// The header page (HeaderPageID) is a flat directory mapping index
// names to their root page id, so several named B+tree indexes can
// share one buffer pool and one disk manager (SPEC_FULL.md's
// "Header page record directory", grounded on the C++ reference's
// page/header_page.h).
//
// Layout: [count uint32] [record]*, record = [nameLen uint16][name bytes][rootID int32].
const (
	headerCountOff   = 0
	headerRecordsOff = 4
	headerMaxNameLen = 255
)

var errHeaderPageFull = fmt.Errorf("storage: header page full")

// HeaderRecordCount returns how many index records the header page
// currently holds.
func HeaderRecordCount(p *Page) int {
	return int(bx.U32At(p.Data(), headerCountOff))
}

// HeaderGetRoot looks up name's root page id. ok is false if name has
// no record.
func HeaderGetRoot(p *Page, name string) (id PageID, ok bool) {
	data := p.Data()
	count := int(bx.U32At(data, headerCountOff))
	off := headerRecordsOff
	for i := 0; i < count; i++ {
		nameLen := int(bx.U16At(data, off))
		off += 2
		recName := string(data[off : off+nameLen])
		off += nameLen
		root := PageID(int32(bx.U32At(data, off)))
		off += 4
		if recName == name {
			return root, true
		}
	}
	return InvalidPageID, false
}

// HeaderInsertRecord appends a new name -> root mapping. It fails if
// name already has a record (use HeaderUpdateRecord) or if the header
// page has no room left.
func HeaderInsertRecord(p *Page, name string, root PageID) error {
	if len(name) > headerMaxNameLen {
		return fmt.Errorf("storage: index name %q longer than %d bytes", name, headerMaxNameLen)
	}
	if _, ok := HeaderGetRoot(p, name); ok {
		return fmt.Errorf("storage: index %q already has a header record", name)
	}

	data := p.Data()
	count := int(bx.U32At(data, headerCountOff))
	end := headerEnd(data, count)
	need := 2 + len(name) + 4
	if end+need > len(data) {
		return errHeaderPageFull
	}

	bx.PutU16At(data, end, uint16(len(name)))
	copy(data[end+2:end+2+len(name)], name)
	bx.PutU32At(data, end+2+len(name), uint32(int32(root)))

	bx.PutU32At(data, headerCountOff, uint32(count+1))
	return nil
}

// HeaderUpdateRecord rewrites name's root page id in place. It fails
// if name has no existing record.
func HeaderUpdateRecord(p *Page, name string, root PageID) error {
	data := p.Data()
	count := int(bx.U32At(data, headerCountOff))
	off := headerRecordsOff
	for i := 0; i < count; i++ {
		nameLen := int(bx.U16At(data, off))
		nameOff := off + 2
		recName := string(data[nameOff : nameOff+nameLen])
		rootOff := nameOff + nameLen
		if recName == name {
			bx.PutU32At(data, rootOff, uint32(int32(root)))
			return nil
		}
		off = rootOff + 4
	}
	return fmt.Errorf("storage: index %q has no header record to update", name)
}

// HeaderDeleteRecord removes name's record, compacting the records
// that followed it.
func HeaderDeleteRecord(p *Page, name string) error {
	data := p.Data()
	count := int(bx.U32At(data, headerCountOff))
	off := headerRecordsOff
	for i := 0; i < count; i++ {
		nameLen := int(bx.U16At(data, off))
		recEnd := off + 2 + nameLen + 4
		recName := string(data[off+2 : off+2+nameLen])
		if recName == name {
			tail := headerEnd(data, count)
			copy(data[off:], data[recEnd:tail])
			for i := tail - (recEnd - off); i < tail; i++ {
				data[i] = 0
			}
			bx.PutU32At(data, headerCountOff, uint32(count-1))
			return nil
		}
		off = recEnd
	}
	return fmt.Errorf("storage: index %q has no header record to delete", name)
}

// headerEnd returns the byte offset just past the last of count
// records.
func headerEnd(data []byte, count int) int {
	off := headerRecordsOff
	for i := 0; i < count; i++ {
		nameLen := int(bx.U16At(data, off))
		off += 2 + nameLen + 4
	}
	return off
}
