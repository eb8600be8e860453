package savefile

import "errors"

var (
	ErrSlotNotFound     = errors.New("save slot not found")
	ErrChecksumMismatch = errors.New("save payload checksum mismatch")
	ErrCodecMismatch    = errors.New("save payload codec mismatch")
	ErrEmptySlotName    = errors.New("slot name must not be empty")
)
