package backup

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type Codec string

const (
	CodecBrotli Codec = "br"
	CodecZstd   Codec = "zstd"
	CodecNone   Codec = "none"
)

func ParseCodec(s string) (Codec, error) {
	switch c := Codec(s); c {
	case CodecBrotli, CodecZstd, CodecNone:
		return c, nil
	case "":
		return CodecNone, nil
	}
	return "", fmt.Errorf("unknown codec '%s'", s)
}

// Ext is the file name extension for compressed data, "" for CodecNone
func (c Codec) Ext() string {
	switch c {
	case CodecBrotli:
		return ".br"
	case CodecZstd:
		return ".zst"
	}
	return ""
}

func getErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func brCompress(d []byte) ([]byte, error) {
	var dst bytes.Buffer
	w := brotli.NewWriterLevel(&dst, brotli.BestCompression)
	_, err := w.Write(d)
	err2 := w.Close()
	if err = getErr(err, err2); err != nil {
		return nil, err
	}
	return dst.Bytes(), nil
}

func zstdCompress(d []byte) ([]byte, error) {
	var dst bytes.Buffer
	// zstd.SpeedBestCompression is slower but our files are tiny
	w, err := zstd.NewWriter(&dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, err
	}
	_, err = w.Write(d)
	err2 := w.Close()
	if err = getErr(err, err2); err != nil {
		return nil, err
	}
	return dst.Bytes(), nil
}

func zstdDecompress(d []byte) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(d))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func Compress(c Codec, d []byte) ([]byte, error) {
	switch c {
	case CodecBrotli:
		return brCompress(d)
	case CodecZstd:
		return zstdCompress(d)
	case CodecNone:
		return d, nil
	}
	return nil, fmt.Errorf("unknown codec '%s'", c)
}

func Decompress(c Codec, d []byte) ([]byte, error) {
	switch c {
	case CodecBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(d)))
	case CodecZstd:
		return zstdDecompress(d)
	case CodecNone:
		return d, nil
	}
	return nil, fmt.Errorf("unknown codec '%s'", c)
}
