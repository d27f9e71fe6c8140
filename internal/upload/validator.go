// Package upload validates untrusted file uploads against content, size
// and naming policy before anything reaches storage. Every stage fails
// closed; the validator itself never writes to persistent storage.
package upload

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Detection source recorded on the artifact.
const (
	DetectionSniffed  = "sniffed"
	DetectionDeclared = "declared"
)

// Naming strategies for the generated safe filename.
const (
	NamingHash   = "hash"
	NamingRandom = "random"
)

const readChunk = 32 * 1024

// Declared is the client-supplied metadata for an upload. None of it is
// trusted until validation completes.
type Declared struct {
	Filename    string
	ContentType string
	Size        int64
}

// Artifact is the validated result of an upload. Ownership passes to
// the caller once Validate returns it.
type Artifact struct {
	Content          []byte
	MIME             string
	DeclaredType     string
	OriginalFilename string
	SafeFilename     string
	Size             int64
	DetectionSource  string
}

// Config is the upload policy, loaded once and read-only thereafter.
type Config struct {
	MaxSize           int64
	AllowedTypes      []string
	AllowedExtensions []string
	NamingStrategy    string
}

// Validator checks uploads against a fixed policy. Stateless per call
// and safe for concurrent use.
type Validator struct {
	maxSize int64
	types   map[string]struct{}
	exts    map[string]struct{}
	naming  string
}

// NewValidator builds a validator; an unusable policy is a construction
// error, not a request-time one.
func NewValidator(cfg Config) (*Validator, error) {
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("upload: max size must be positive")
	}
	if len(cfg.AllowedTypes) == 0 || len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("upload: allowed types and extensions are required")
	}
	naming := strings.TrimSpace(strings.ToLower(cfg.NamingStrategy))
	if naming == "" {
		naming = NamingHash
	}
	if naming != NamingHash && naming != NamingRandom {
		return nil, fmt.Errorf("upload: unknown naming strategy %q", cfg.NamingStrategy)
	}
	v := &Validator{
		maxSize: cfg.MaxSize,
		types:   make(map[string]struct{}, len(cfg.AllowedTypes)),
		exts:    make(map[string]struct{}, len(cfg.AllowedExtensions)),
		naming:  naming,
	}
	for _, t := range cfg.AllowedTypes {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			v.types[t] = struct{}{}
		}
	}
	for _, e := range cfg.AllowedExtensions {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		v.exts[e] = struct{}{}
	}
	return v, nil
}

// Validate runs the full pipeline over the stream: declared-metadata
// checks, magic-number sniffing, incremental size enforcement, filename
// sanitization. The stream is counted as it is read so an oversized
// payload is rejected without ever being buffered whole, and a
// cancelled context aborts the read promptly.
func (v *Validator) Validate(ctx context.Context, r io.Reader, meta Declared) (*Artifact, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: missing stream", ErrInvalidInput)
	}
	ext, err := v.checkDeclared(meta)
	if err != nil {
		return nil, err
	}

	// Sniff a bounded prefix before touching the rest of the stream so
	// a forged payload is rejected without reading its body.
	prefix, err := readFull(ctx, r, sniffLen)
	if err != nil {
		return nil, err
	}
	if len(prefix) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	mime, ok := sniffMIME(prefix)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized content", ErrContentTypeNotAllowed)
	}
	if !mimeMatchesExtension(mime, ext) {
		return nil, fmt.Errorf("%w: %s content under %s name", ErrTypeMismatch, mime, ext)
	}
	if _, allowed := v.types[mime]; !allowed {
		return nil, fmt.Errorf("%w: %s", ErrContentTypeNotAllowed, mime)
	}

	content, err := v.readCapped(ctx, r, prefix)
	if err != nil {
		return nil, err
	}
	if err := scanEmbeddedScripts(content); err != nil {
		return nil, err
	}

	safe, err := v.safeFilename(content, mime)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Content:          content,
		MIME:             mime,
		DeclaredType:     meta.ContentType,
		OriginalFilename: meta.Filename,
		SafeFilename:     safe,
		Size:             int64(len(content)),
		DetectionSource:  DetectionSniffed,
	}, nil
}

func (v *Validator) checkDeclared(meta Declared) (string, error) {
	if strings.TrimSpace(meta.Filename) == "" {
		return "", fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if meta.Size > v.maxSize {
		return "", fmt.Errorf("%w: declared %d bytes, limit %d", ErrFileTooLarge, meta.Size, v.maxSize)
	}
	if hasDangerousExtension(meta.Filename) {
		return "", fmt.Errorf("%w: dangerous filename pattern", ErrExtensionNotAllowed)
	}
	ext := declaredExtension(meta.Filename)
	if ext == "" {
		return "", fmt.Errorf("%w: missing extension", ErrExtensionNotAllowed)
	}
	if _, ok := v.exts[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrExtensionNotAllowed, ext)
	}
	return ext, nil
}

// readFull reads up to limit bytes, stopping at EOF.
func readFull(ctx context.Context, r io.Reader, limit int) ([]byte, error) {
	buf := make([]byte, 0, limit)
	chunk := make([]byte, limit)
	for len(buf) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk[:limit-len(buf)])
		buf = append(buf, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// readCapped streams the remaining body in chunks, aborting the instant
// the running total exceeds the cap. Memory use is bounded by maxSize
// regardless of how large the incoming stream is.
func (v *Validator) readCapped(ctx context.Context, r io.Reader, prefix []byte) ([]byte, error) {
	total := int64(len(prefix))
	if total > v.maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, v.maxSize)
	}
	var buf bytes.Buffer
	buf.Write(prefix)
	chunk := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if total > v.maxSize {
				return nil, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, v.maxSize)
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// scanEmbeddedScripts rejects image payloads carrying script fragments
// in metadata segments. A crude check, not a malware scan: magic-number
// sniffing proves the container format only, and real malware detection
// needs an external scanning engine.
var scriptFragments = [][]byte{
	[]byte("<?php"),
	[]byte("<script"),
	[]byte("javascript:"),
	[]byte("eval("),
}

func scanEmbeddedScripts(content []byte) error {
	for _, frag := range scriptFragments {
		if bytes.Contains(content, frag) {
			return fmt.Errorf("%w: embedded script fragment", ErrContentTypeNotAllowed)
		}
	}
	return nil
}

// safeFilename derives the stored name from the content itself (or a
// random token), with the extension implied by the sniffed type — never
// the declared one.
func (v *Validator) safeFilename(content []byte, mime string) (string, error) {
	exts := extensionsForMIME(mime)
	if len(exts) == 0 {
		return "", fmt.Errorf("%w: no canonical extension for %s", ErrContentTypeNotAllowed, mime)
	}
	ext := exts[0]
	if v.naming == NamingRandom {
		return uuid.NewString() + ext, nil
	}
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:8]) + ext, nil
}
