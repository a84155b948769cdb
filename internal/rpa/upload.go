package rpa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// MaxChunkSize is the largest chunk the remote system accepts.
	MaxChunkSize int64 = 4 << 20
	// DefaultChunkSize is used when an upload does not set one.
	DefaultChunkSize = MaxChunkSize
)

var ErrChunkTooLarge = errors.New("rpa: chunk exceeds max chunk size")

// Chunk is one byte range of an upload.
type Chunk struct {
	Offset int64
	Length int64
}

// Chunks splits size bytes into ascending ranges of at most chunkSize. The
// last chunk carries the remainder; a size that is an exact multiple of
// chunkSize does not produce a trailing empty chunk. An empty file is sent as
// a single zero-length chunk.
func Chunks(size, chunkSize int64) []Chunk {
	if size <= 0 {
		return []Chunk{{Offset: 0, Length: 0}}
	}
	n := size / chunkSize
	if size%chunkSize != 0 {
		n++
	}
	chunks := make([]Chunk, 0, n)
	for offset := int64(0); offset < size; offset += chunkSize {
		length := chunkSize
		if offset+length > size {
			length = size - offset
		}
		chunks = append(chunks, Chunk{Offset: offset, Length: length})
	}
	return chunks
}

// CreateUploadSession opens an upload and returns its handle.
func (c *Client) CreateUploadSession(ctx context.Context, fileName, fileType string, fileLength int64) (string, error) {
	q := url.Values{}
	q.Set("file_name", fileName)
	q.Set("file_type", fileType)
	q.Set("file_length", strconv.FormatInt(fileLength, 10))

	var resp idResponse
	err := c.Do(ctx, Request{Method: http.MethodPost, ID: c.partnerID, Edge: "uploads", Query: q}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("rpa: upload session created without handle")
	}
	return resp.ID, nil
}

// UploadChunk sends one byte range and returns the file handle reported by
// the remote system. Only the final chunk's handle is meaningful.
func (c *Client) UploadChunk(ctx context.Context, uploadHandle string, offset, length int64, data []byte) (string, error) {
	if length > MaxChunkSize {
		return "", fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, length, MaxChunkSize)
	}
	if int64(len(data)) != length {
		return "", fmt.Errorf("rpa: chunk length %d does not match %d bytes", length, len(data))
	}
	header := http.Header{}
	header.Set("file_offset", strconv.FormatInt(offset, 10))

	var resp struct {
		Handle string `json:"h"`
	}
	err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		ID:          uploadHandle,
		Header:      header,
		Body:        bytes.NewReader(data),
		ContentType: "application/octet-stream",
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Handle, nil
}

type FileMetadata struct {
	Name      string   `json:"file_name"`
	Extension string   `json:"file_extension"`
	Role      FileRole `json:"file_role"`
	Handle    string   `json:"file_handle"`
}

// UpdateFileMetadata attaches name and role to an uploaded handle and returns
// the resulting remote input file.
func (c *Client) UpdateFileMetadata(ctx context.Context, meta FileMetadata) (*InputFile, error) {
	var f InputFile
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		ID:     c.partnerID,
		Edge:   "tg_input_files",
		JSON:   meta,
	}, &f)
	if err != nil {
		return nil, err
	}
	if f.ID == "" {
		return nil, errors.New("rpa: input file created without id")
	}
	if f.Name == "" {
		f.Name = meta.Name
	}
	if f.Role == "" {
		f.Role = meta.Role
	}
	return &f, nil
}

type UploadRequest struct {
	Name      string
	Extension string
	FileType  string
	Role      FileRole
	Size      int64
	Reader    io.Reader
	// ChunkSize overrides DefaultChunkSize. It may not exceed MaxChunkSize.
	ChunkSize int64
}

// UploadFile runs the three step upload: open a session, send every chunk in
// order, then attach metadata to the final handle.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) (*InputFile, error) {
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, chunkSize, MaxChunkSize)
	}

	session, err := c.CreateUploadSession(ctx, req.Name, req.FileType, req.Size)
	if err != nil {
		return nil, err
	}

	var handle string
	buf := make([]byte, min(chunkSize, max(req.Size, 0)))
	for _, chunk := range Chunks(req.Size, chunkSize) {
		data := buf[:chunk.Length]
		if _, err := io.ReadFull(req.Reader, data); err != nil {
			return nil, fmt.Errorf("rpa: read chunk at %d: %w", chunk.Offset, err)
		}
		handle, err = c.UploadChunk(ctx, session, chunk.Offset, chunk.Length, data)
		if err != nil {
			return nil, err
		}
	}
	if handle == "" {
		return nil, errors.New("rpa: upload finished without file handle")
	}
	c.logger.Debug("rpa upload complete", "name", req.Name, "size", req.Size)

	return c.UpdateFileMetadata(ctx, FileMetadata{
		Name:      req.Name,
		Extension: req.Extension,
		Role:      req.Role,
		Handle:    handle,
	})
}
