// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package prefdl decodes and encodes the product identification blob of
// Arista eeproms.
//
// The binary form is a four character version, the fixed fields of
// version 0002, a stream of records, each two hex digits of code, four
// hex digits of length and the value, closed by a zero code record and
// eight hex digits of the crc32 of everything before it. The text form
// is one "Name: value" line per field.
package prefdl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/platinasystems/sysplat/hwapi"
	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("prefdl")

var (
	ErrInvalid = errors.New("invalid prefdl")
	ErrCrc     = errors.New("prefdl crc mismatch")
)

const (
	V2 = "0002"
	V3 = "0003"
)

type kind int

const (
	str kind = iota
	mac
	tuple
	serial
)

// Field is a known record.
type Field struct {
	Code uint8
	Name string
	// Length of the fixed field in version 0002.
	Length  int
	Aliases []string
	kind    kind
}

var Fields = []*Field{
	{Code: 0x01, Name: "Deviation"},
	{Code: 0x02, Name: "MfgTime"},
	{Code: 0x03, Name: "SKU", Aliases: []string{"Sku"}},
	{Code: 0x04, Name: "ASY"},
	{Code: 0x05, Name: "MAC", Aliases: []string{"MacAddrBase", "Mac"}, kind: mac},
	{Code: 0x0a, Name: "HwApi", kind: tuple},
	{Code: 0x0b, Name: "HwRev", kind: tuple},
	{Code: 0x0c, Name: "SID", Aliases: []string{"Sid"}},
	{Code: 0x0d, Name: "PCA", Length: 12},
	{Code: 0x0e, Name: "SerialNumber", Length: 11, kind: serial},
	{Code: 0x0f, Name: "KVN", Length: 3},
	{Code: 0x17, Name: "MfgTime2"},
}

var (
	byCode = make(map[uint8]*Field)
	byName = make(map[string]*Field)
)

func init() {
	for _, f := range Fields {
		if byCode[f.Code] != nil {
			panic(fmt.Errorf("prefdl: duplicate code %#02x", f.Code))
		}
		byCode[f.Code] = f
		for _, name := range append([]string{f.Name}, f.Aliases...) {
			if byName[name] != nil {
				panic(fmt.Errorf("prefdl: duplicate name %s", name))
			}
			byName[name] = f
		}
	}
}

func FieldByCode(code uint8) (*Field, bool) {
	f, found := byCode[code]
	return f, found
}

// FieldByName resolves names and aliases.
func FieldByName(name string) (*Field, bool) {
	f, found := byName[name]
	return f, found
}

var serialRe = regexp.MustCompile(`^[A-Z]{3}\d{4}[A-Z0-9]{4}$`)

// ValidSerial checks the AAA9999XXXX form, ignoring dashes and spaces.
func ValidSerial(s string) bool {
	s = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(s))
	return serialRe.MatchString(s)
}

// normalize returns the printed form of a value.
func (f *Field) normalize(v string) (string, error) {
	switch f.kind {
	case mac:
		if strings.Contains(v, ":") || len(v) != 12 {
			return v, nil
		}
		return strings.Join([]string{v[0:2], v[2:4], v[4:6], v[6:8],
			v[8:10], v[10:12]}, ":"), nil
	case tuple:
		h, err := hwapi.Parse(v)
		if err != nil {
			return "", err
		}
		return h.String(), nil
	case serial:
		if !ValidSerial(v) {
			return "", fmt.Errorf("serial number %q", v)
		}
	}
	return v, nil
}

// Record is one field as stored. Known is false for codes this package
// does not know; they are kept so re-encoding preserves the crc.
type Record struct {
	Code  uint8
	Name  string
	Value string
	Raw   []byte
	Known bool

	// hdr is the code and length as read, reused when encoding.
	hdr string
}

type Prefdl struct {
	Version string

	records []Record
	data    map[string]string
	crc     uint32
	crcOk   bool
}

func newPrefdl(version string) *Prefdl {
	return &Prefdl{Version: version, data: make(map[string]string), crcOk: true}
}

// add records a known field, rejecting values that fail their check.
func (p *Prefdl) add(f *Field, raw []byte) {
	v, err := f.normalize(string(raw))
	if err != nil {
		log.Warning("field %s value does not meet expectation: %v", f.Name, err)
		p.records = append(p.records, Record{Code: f.Code, Name: f.Name, Raw: copyOf(raw)})
		return
	}
	if old, found := p.data[f.Name]; found {
		log.Warning("eeprom field %s already set with %s", f.Name, old)
	}
	p.data[f.Name] = v
	p.records = append(p.records, Record{
		Code:  f.Code,
		Name:  f.Name,
		Value: v,
		Raw:   copyOf(raw),
		Known: true,
	})
}

func copyOf(b []byte) []byte { return append([]byte(nil), b...) }

// FromMap builds a prefdl from field names or aliases; unknown names are
// dropped.
func FromMap(m map[string]string) *Prefdl {
	p := newPrefdl("")
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if f, found := FieldByName(k); found {
			p.add(f, []byte(m[k]))
		}
	}
	return p
}

type reader struct {
	b   []byte
	off int
	buf bytes.Buffer
}

func (r *reader) read(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, fmt.Errorf("%w: truncated at %d", ErrInvalid, r.off)
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	r.buf.Write(v)
	return v, nil
}

func (r *reader) hex(n int) (uint64, error) {
	b, err := r.read(n)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(b), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q at %d", ErrInvalid, b, r.off-n)
	}
	return v, nil
}

// Decode parses the binary form. A crc mismatch is not an error here;
// CrcValid reports it.
func Decode(b []byte) (*Prefdl, error) {
	r := &reader{b: b}
	version, err := r.read(4)
	if err != nil {
		return nil, err
	}
	p := newPrefdl(string(version))
	switch p.Version {
	case V2:
		for _, name := range []string{"PCA", "SerialNumber", "KVN"} {
			f := byName[name]
			v, err := r.read(f.Length)
			if err != nil {
				return nil, err
			}
			p.add(f, v)
		}
	case V3:
	default:
		return nil, fmt.Errorf("%w: unknown version %q", ErrInvalid, version)
	}
	for {
		start := r.off
		code, err := r.hex(2)
		if err != nil {
			return nil, err
		}
		n, err := r.hex(4)
		if err != nil {
			return nil, err
		}
		if code == 0 {
			break
		}
		hdr := string(b[start:r.off])
		v, err := r.read(int(n))
		if err != nil {
			return nil, err
		}
		if f, found := FieldByCode(uint8(code)); found {
			p.add(f, v)
		} else {
			p.records = append(p.records, Record{Code: uint8(code), Raw: copyOf(v)})
		}
		p.records[len(p.records)-1].hdr = hdr
	}
	p.crc = crc32.ChecksumIEEE(r.buf.Bytes())
	if r.off+8 > len(b) {
		return nil, fmt.Errorf("%w: missing crc", ErrInvalid)
	}
	expected, err := strconv.ParseUint(string(b[r.off:r.off+8]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: crc %q", ErrInvalid, b[r.off:r.off+8])
	}
	if uint32(expected) != p.crc {
		log.Error("eeprom crc mismatch %#08x vs %#08x", expected, p.crc)
		p.crcOk = false
	}
	return p, nil
}

// ReadFile decodes a binary file, skipping a leading header.
func ReadFile(path string, skip int) (*Prefdl, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if skip > len(b) {
		return nil, fmt.Errorf("%s: %w: shorter than %d", path, ErrInvalid, skip)
	}
	p, err := Decode(b[skip:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (p *Prefdl) CrcValid() bool { return p.crcOk }
func (p *Prefdl) Crc() uint32    { return p.crc }

// Validate returns ErrCrc when the stored crc did not match.
func (p *Prefdl) Validate() error {
	if !p.crcOk {
		return fmt.Errorf("%w: computed %#08x", ErrCrc, p.crc)
	}
	return nil
}

// Get returns a field by name or alias.
func (p *Prefdl) Get(name string) (string, bool) {
	if f, found := FieldByName(name); found {
		name = f.Name
	}
	v, found := p.data[name]
	return v, found
}

func (p *Prefdl) HwApi() (hwapi.HwApi, bool) {
	v, found := p.data["HwApi"]
	if !found {
		return nil, false
	}
	h, err := hwapi.Parse(v)
	return h, err == nil
}

// Map returns the printed form of every known field.
func (p *Prefdl) Map() map[string]string {
	m := make(map[string]string, len(p.data))
	for k, v := range p.data {
		m[k] = v
	}
	return m
}

// Records returns every record in decode order, unknown ones included.
func (p *Prefdl) Records() []Record {
	return append([]Record(nil), p.records...)
}

func (p *Prefdl) raw(name string, length int) []byte {
	for _, r := range p.records {
		if r.Name == name {
			return r.Raw
		}
	}
	return bytes.Repeat([]byte(" "), length)
}

// Encode renders the binary form with a fresh crc, version 0003 unless
// the prefdl was decoded from another version.
func (p *Prefdl) Encode() []byte {
	version := p.Version
	if version != V2 {
		version = V3
	}
	var buf bytes.Buffer
	buf.WriteString(version)
	fixed := make(map[string]bool)
	if version == V2 {
		for _, name := range []string{"PCA", "SerialNumber", "KVN"} {
			f := byName[name]
			v := p.raw(name, f.Length)
			fmt.Fprintf(&buf, "%-*.*s", f.Length, f.Length, v)
			fixed[name] = true
		}
	}
	for _, r := range p.records {
		if fixed[r.Name] {
			continue
		}
		if len(r.hdr) > 0 {
			buf.WriteString(r.hdr)
		} else {
			fmt.Fprintf(&buf, "%02X%04X", r.Code, len(r.Raw))
		}
		buf.Write(r.Raw)
	}
	buf.WriteString("000000")
	fmt.Fprintf(&buf, "%08X", crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes()
}

// WriteText writes one "Name: value" line per known field, sorted.
func (p *Prefdl) WriteText(w io.Writer) error {
	keys := make([]string, 0, len(p.data))
	for k := range p.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\n", k, p.data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prefdl) WriteTextFile(path string) error {
	var buf bytes.Buffer
	if err := p.WriteText(&buf); err != nil {
		return err
	}
	return ioutil.WriteFile(path, buf.Bytes(), 0644)
}

// ReadText parses the text form; malformed lines are skipped.
func ReadText(r io.Reader) (*Prefdl, error) {
	m := make(map[string]string)
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimRight(scan.Text(), " \t\r")
		if len(line) == 0 {
			continue
		}
		kv := strings.SplitN(line, ": ", 2)
		if len(kv) != 2 {
			log.Warning("failed to parse field %q", line)
			continue
		}
		m[kv[0]] = kv[1]
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return FromMap(m), nil
}

func ReadTextFile(path string) (*Prefdl, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadText(f)
}
