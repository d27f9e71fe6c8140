package upload

import "bytes"

// sniffLen is how much of the stream is inspected for a signature. 512
// bytes covers every entry in the table with room to spare.
const sniffLen = 512

// signature maps a byte pattern at a fixed offset to a MIME type and
// the file extensions that type legitimately carries. The table is pure
// data: extending coverage means adding a row, not touching control flow.
type signature struct {
	offset  int
	pattern []byte
	mime    string
	exts    []string
}

var signatures = []signature{
	{0, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg", []string{".jpg", ".jpeg"}},
	{0, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png", []string{".png"}},
	{0, []byte("GIF87a"), "image/gif", []string{".gif"}},
	{0, []byte("GIF89a"), "image/gif", []string{".gif"}},
	{8, []byte("WEBP"), "image/webp", []string{".webp"}},
	{0, []byte("%PDF-"), "application/pdf", []string{".pdf"}},
	{0, []byte("PK\x03\x04"), "application/zip", []string{".zip"}},
	{0, []byte("Rar!\x1a\x07"), "application/x-rar-compressed", []string{".rar"}},
	{0, []byte("7z\xbc\xaf\x27\x1c"), "application/x-7z-compressed", []string{".7z"}},
	{0, []byte{0x1F, 0x8B}, "application/gzip", []string{".gz"}},
	{0, []byte("MZ"), "application/x-msdownload", []string{".exe", ".dll"}},
	{0, []byte{0x7F, 'E', 'L', 'F'}, "application/x-executable", []string{".elf", ".so"}},
	{0, []byte("\xca\xfe\xba\xbe"), "application/x-mach-binary", []string{".dylib"}},
	{0, []byte("#!"), "text/x-script", []string{".sh"}},
	{0, []byte("<?php"), "text/x-php", []string{".php"}},
}

// sniffMIME determines the true content type of the prefix from its
// binary signature, independent of any declared metadata. Returns false
// when no signature matches.
func sniffMIME(prefix []byte) (string, bool) {
	for _, sig := range signatures {
		end := sig.offset + len(sig.pattern)
		if len(prefix) >= end && bytes.Equal(prefix[sig.offset:end], sig.pattern) {
			// RIFF containers share the first eight bytes; require the
			// RIFF magic too so arbitrary data cannot fake WEBP.
			if sig.offset == 8 && !bytes.HasPrefix(prefix, []byte("RIFF")) {
				continue
			}
			return sig.mime, true
		}
	}
	return "", false
}

// extensionsForMIME returns the extensions a sniffed type may carry.
func extensionsForMIME(mime string) []string {
	for _, sig := range signatures {
		if sig.mime == mime {
			return sig.exts
		}
	}
	return nil
}

// mimeMatchesExtension reports whether the sniffed type is consistent
// with the declared extension.
func mimeMatchesExtension(mime, ext string) bool {
	for _, e := range extensionsForMIME(mime) {
		if e == ext {
			return true
		}
	}
	return false
}
