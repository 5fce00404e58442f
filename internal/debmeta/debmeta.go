// Package debmeta reads package metadata out of Debian archives without
// dpkg. A .deb is an ar archive whose control.tar member holds the control
// file; this package parses just enough of both formats to surface those
// fields for display.
package debmeta

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const (
	arMagic      = "!<arch>\n"
	arHeaderSize = 60

	// Control files are a few KB; anything larger means a corrupt or
	// hostile archive.
	maxControlSize = 1 << 20
)

// Field is one control-file field in file order
type Field struct {
	Name  string
	Value string
}

// Control holds the parsed control file of a Debian package. Well-known
// fields are promoted to struct members; Fields preserves everything in
// the order it appeared.
type Control struct {
	Package      string
	Version      string
	Architecture string
	Maintainer   string
	Description  string
	Fields       []Field
}

// Get returns the value of a field by name, or empty if absent
func (c *Control) Get(name string) string {
	for _, f := range c.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Read extracts the control metadata from a .deb file
func Read(debPath string) (*Control, error) {
	f, err := os.Open(debPath)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != arMagic {
		return nil, fmt.Errorf("%s is not a Debian archive", debPath)
	}

	sawDebianBinary := false
	for {
		name, size, err := readMemberHeader(f)
		if err == io.EOF {
			return nil, fmt.Errorf("no control member found in %s", debPath)
		}
		if err != nil {
			return nil, err
		}

		switch {
		case name == "debian-binary":
			version := make([]byte, min(size, 8))
			if _, err := io.ReadFull(f, version); err != nil {
				return nil, fmt.Errorf("read format version: %w", err)
			}
			if !strings.HasPrefix(string(version), "2.") {
				return nil, fmt.Errorf("unsupported Debian archive version %q", strings.TrimSpace(string(version)))
			}
			sawDebianBinary = true
			if err := skip(f, size-int64(len(version))+pad(size)); err != nil {
				return nil, err
			}

		case strings.HasPrefix(name, "control.tar"):
			if !sawDebianBinary {
				return nil, fmt.Errorf("%s is not a Debian archive: control member precedes debian-binary", debPath)
			}
			return readControlMember(io.LimitReader(f, size), name)

		default:
			if err := skip(f, size+pad(size)); err != nil {
				return nil, err
			}
		}
	}
}

// readMemberHeader parses one 60-byte ar member header
func readMemberHeader(r io.Reader) (string, int64, error) {
	header := make([]byte, arHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return "", 0, io.EOF
		}
		return "", 0, err
	}
	if header[58] != 0x60 || header[59] != 0x0A {
		return "", 0, fmt.Errorf("malformed ar member header")
	}

	name := strings.TrimRight(string(header[0:16]), " ")
	// Some ar writers terminate names GNU-style with a slash.
	name = strings.TrimSuffix(name, "/")

	size, err := strconv.ParseInt(strings.TrimSpace(string(header[48:58])), 10, 64)
	if err != nil || size < 0 {
		return "", 0, fmt.Errorf("malformed ar member size for %q", name)
	}
	return name, size, nil
}

// pad returns the alignment padding after a member: ar data is 2-byte aligned
func pad(size int64) int64 {
	return size % 2
}

func skip(f *os.File, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := f.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("seek past member: %w", err)
	}
	return nil
}

// readControlMember decompresses the control tarball per its extension and
// parses the control file inside.
func readControlMember(r io.Reader, name string) (*Control, error) {
	var tarStream io.Reader
	switch path.Ext(name) {
	case ".tar":
		tarStream = r
	case ".gz":
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip control member: %w", err)
		}
		defer func() { _ = gzr.Close() }()
		tarStream = gzr
	case ".xz":
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open xz control member: %w", err)
		}
		tarStream = xzr
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd control member: %w", err)
		}
		defer zr.Close()
		tarStream = zr
	default:
		return nil, fmt.Errorf("unsupported control member compression: %s", name)
	}

	tr := tar.NewReader(tarStream)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("control file missing from %s", name)
		}
		if err != nil {
			return nil, fmt.Errorf("read control member: %w", err)
		}
		if strings.TrimPrefix(path.Clean(hdr.Name), "./") != "control" {
			continue
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(tr, maxControlSize)); err != nil {
			return nil, fmt.Errorf("read control file: %w", err)
		}
		return Parse(&buf)
	}
}

// Parse parses an RFC 822 style control stream: "Name: value" lines, with
// continuation lines indented by a space or tab. It accepts both control
// files extracted from a .deb and the output of dpkg-deb --field.
func Parse(r io.Reader) (*Control, error) {
	control := &Control{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxControlSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if len(control.Fields) == 0 {
				return nil, fmt.Errorf("control file starts with a continuation line")
			}
			last := &control.Fields[len(control.Fields)-1]
			text := strings.TrimSpace(line)
			// A lone dot marks a blank line inside a field value.
			if text == "." {
				text = ""
			}
			last.Value += "\n" + text
			continue
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed control line: %q", line)
		}
		control.Fields = append(control.Fields, Field{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan control file: %w", err)
	}
	if len(control.Fields) == 0 {
		return nil, fmt.Errorf("control file is empty")
	}

	for _, f := range control.Fields {
		switch f.Name {
		case "Package":
			control.Package = f.Value
		case "Version":
			control.Version = f.Value
		case "Architecture":
			control.Architecture = f.Value
		case "Maintainer":
			control.Maintainer = f.Value
		case "Description":
			control.Description = f.Value
		}
	}
	return control, nil
}
