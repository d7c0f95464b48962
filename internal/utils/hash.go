package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// HashingReader считает SHA-256 прочитанных через него данных
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

// NewHashingReader оборачивает r, хэш считается по мере чтения
func NewHashingReader(r io.Reader) *HashingReader {
	h := sha256.New()
	return &HashingReader{r: io.TeeReader(r, h), h: h}
}

// Read читает из исходного потока и дописывает прочитанное в хэш
func (hr *HashingReader) Read(p []byte) (int, error) {
	return hr.r.Read(p)
}

// Sum возвращает hex SHA-256 всего прочитанного на данный момент
func (hr *HashingReader) Sum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}
