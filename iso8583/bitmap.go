package iso8583

import (
	"encoding/hex"
	"fmt"
)

// BitmapManager handles the primary, secondary and tertiary 64-bit bitmaps.
// Bit 1 flags the secondary bitmap and bit 65 flags the tertiary one; both
// are maintained automatically.
type BitmapManager struct {
	blocks [3][BitmapSize]byte
	count  int // number of blocks in use, 1 to 3
}

// NewBitmapManager creates a new bitmap manager.
func NewBitmapManager() *BitmapManager {
	return &BitmapManager{count: 1}
}

func isIndicator(fieldNum int) bool {
	return fieldNum == 1 || fieldNum == 65
}

// SetField sets the bit for a data field (2-192, excluding 65).
func (bm *BitmapManager) SetField(fieldNum int) error {
	if fieldNum < 2 || fieldNum > MaxFieldNumber || isIndicator(fieldNum) {
		return fmt.Errorf("field number %d out of range", fieldNum)
	}
	if bm.count == 0 {
		bm.count = 1
	}

	block := (fieldNum - 1) / 64
	for block+1 > bm.count {
		bm.count++
	}
	bm.setBit(fieldNum)
	bm.syncIndicators()
	return nil
}

func (bm *BitmapManager) setBit(fieldNum int) {
	block := (fieldNum - 1) / 64
	pos := (fieldNum - 1) % 64
	bm.blocks[block][pos/8] |= 1 << (7 - pos%8)
}

func (bm *BitmapManager) clearBit(fieldNum int) {
	block := (fieldNum - 1) / 64
	pos := (fieldNum - 1) % 64
	bm.blocks[block][pos/8] &^= 1 << (7 - pos%8)
}

func (bm *BitmapManager) bit(fieldNum int) bool {
	block := (fieldNum - 1) / 64
	pos := (fieldNum - 1) % 64
	return bm.blocks[block][pos/8]&(1<<(7-pos%8)) != 0
}

func (bm *BitmapManager) syncIndicators() {
	if bm.count > 1 {
		bm.setBit(1)
	} else {
		bm.clearBit(1)
	}
	if bm.count > 2 {
		bm.setBit(65)
	} else {
		bm.clearBit(65)
	}
}

// IsFieldSet checks if the bit for the given field number is set.
func (bm *BitmapManager) IsFieldSet(fieldNum int) bool {
	if fieldNum < 1 || fieldNum > MaxFieldNumber {
		return false
	}
	if (fieldNum-1)/64 >= bm.count {
		return false
	}
	return bm.bit(fieldNum)
}

// ClearField clears the bit for the given field number and drops trailing
// bitmaps that became empty.
func (bm *BitmapManager) ClearField(fieldNum int) error {
	if fieldNum < 2 || fieldNum > MaxFieldNumber || isIndicator(fieldNum) {
		return fmt.Errorf("field number %d out of range", fieldNum)
	}
	if (fieldNum-1)/64 >= bm.count {
		return nil
	}
	bm.clearBit(fieldNum)

	for bm.count > 1 && bm.blockEmpty(bm.count-1) {
		bm.count--
	}
	bm.syncIndicators()
	return nil
}

func (bm *BitmapManager) blockEmpty(block int) bool {
	for i, b := range bm.blocks[block] {
		if i == 0 && block < 2 {
			b &^= 0x80 // indicator bit of the following block
		}
		if b != 0 {
			return false
		}
	}
	return true
}

// GetPresentFields returns the data fields that are set in the bitmap.
func (bm *BitmapManager) GetPresentFields() []int {
	fields := make([]int, 0, 16)
	for fieldNum := 2; fieldNum <= bm.count*64; fieldNum++ {
		if isIndicator(fieldNum) {
			continue
		}
		if bm.bit(fieldNum) {
			fields = append(fields, fieldNum)
		}
	}
	return fields
}

// PackBitmap appends the bitmap to buf using the specified encoding.
func (bm *BitmapManager) PackBitmap(buf []byte, encoding BitmapEncoding) []byte {
	if bm.count == 0 {
		bm.count = 1
	}
	for i := 0; i < bm.count; i++ {
		if encoding == BitmapEncodingHex {
			var dst [BitmapSize * 2]byte
			encodeHexUpper(dst[:], bm.blocks[i][:])
			buf = append(buf, dst[:]...)
		} else {
			buf = append(buf, bm.blocks[i][:]...)
		}
	}
	return buf
}

// UnpackBitmap reads the bitmap from data. Returns the number of bytes consumed.
func (bm *BitmapManager) UnpackBitmap(data []byte, encoding BitmapEncoding) (int, error) {
	bm.Reset()

	width := BitmapSize
	if encoding == BitmapEncodingHex {
		width = BitmapSize * 2
	}

	offset := 0
	for block := 0; block < 3; block++ {
		if len(data) < offset+width {
			return 0, ErrInvalidBitmap
		}
		if encoding == BitmapEncodingHex {
			if _, err := hex.Decode(bm.blocks[block][:], data[offset:offset+width]); err != nil {
				return 0, ErrInvalidBitmapHex
			}
		} else {
			copy(bm.blocks[block][:], data[offset:offset+width])
		}
		offset += width
		bm.count = block + 1

		// The first bit of each block announces the next one.
		if bm.blocks[block][0]&0x80 == 0 || block == 2 {
			break
		}
	}
	return offset, nil
}

// Reset clears all bits.
func (bm *BitmapManager) Reset() {
	bm.blocks = [3][BitmapSize]byte{}
	bm.count = 1
}

// HasSecondaryBitmap returns true if the secondary bitmap indicator (DE 1) is set.
func (bm *BitmapManager) HasSecondaryBitmap() bool {
	return bm.count > 1
}

// HasTertiaryBitmap returns true if the tertiary bitmap indicator (DE 65) is set.
func (bm *BitmapManager) HasTertiaryBitmap() bool {
	return bm.count > 2
}

// BitmapSize returns the total size of the binary bitmap in bytes (8, 16 or 24).
func (bm *BitmapManager) BitmapSize() int {
	if bm.count == 0 {
		return BitmapSize
	}
	return bm.count * BitmapSize
}
