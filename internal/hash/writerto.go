package hash

import (
	"bytes"
	"io"
)

// WriterToWithDomain is implemented by every type that goes into a transcript.
// Domain names the type, so that equal bytes from different types hash apart.
type WriterToWithDomain interface {
	io.WriterTo
	Domain() string
}

// writeWithDomain writes len(domain)‖domain‖len(data)‖data, so that two different
// sequences of items can never produce the same byte stream.
func writeWithDomain(w io.Writer, object WriterToWithDomain) error {
	var data bytes.Buffer
	if _, err := object.WriteTo(&data); err != nil {
		return err
	}
	domain := object.Domain()
	if err := writeLength(w, len(domain)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, domain); err != nil {
		return err
	}
	if err := writeLength(w, data.Len()); err != nil {
		return err
	}
	_, err := w.Write(data.Bytes())
	return err
}

// BytesWithDomain tags raw bytes with a domain of the caller's choosing.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

func (b BytesWithDomain) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes)
	return int64(n), err
}

func (b BytesWithDomain) Domain() string {
	return b.TheDomain
}
