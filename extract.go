package air

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source names where an extracted field's raw value may come from, per
// §4.4's Source model.
type Source int

const (
	SourceParam Source = iota
	SourceQuery
	SourceHeader
	SourceCookie
	SourceBody
	SourceForm
	SourceFormData
	SourceDepot
)

// Format describes how a Body-backed Source should be decoded.
type Format int

const (
	FormatMultiMap Format = iota
	FormatJSON
	FormatYAML
)

// Field is one destination field's extraction metadata: which sources to
// try, in order, any aliases, an explicit rename, whether it should be
// flattened into a nested struct, and nested metadata when flatten is
// set.
type Field struct {
	Name           string
	StructField    string
	Sources        []Source
	Aliases        []string
	Flatten        bool
	NestedMetadata *Metadata
}

// Metadata is a compile-time-for-the-user-type, runtime-for-the-engine
// description of how to populate a destination type from a Request, per
// §4.4.
type Metadata struct {
	Name           string
	DefaultSources []Source
	Fields         []Field
}

// sourceView is the materialized multimap for one Source, built once per
// extraction and shared across fields that reference the same source.
type sourceView map[string][]string

// FromRequest populates dst (a pointer to a struct) from req/depot
// according to metadata, implementing the algorithm of §4.4. Extraction
// failures are returned as *ParseError. A field whose value is missing
// from every source is left unchanged, whether or not it is a pointer
// type; a missing value is never an error.
func FromRequest(req *Request, depot *Depot, metadata *Metadata, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return &ParseError{Kind: ParseErrOther, Cause: errNotStructPointer}
	}
	elem := rv.Elem()

	views := make(map[Source]sourceView)

	return extractFields(req, depot, metadata, elem, views)
}

var errNotStructPointer = &ParseError{Kind: ParseErrOther}

func extractFields(req *Request, depot *Depot, metadata *Metadata, dst reflect.Value, views map[Source]sourceView) error {
	for _, field := range metadata.Fields {
		sources := field.Sources
		if len(sources) == 0 {
			sources = metadata.DefaultSources
		}

		if field.Flatten && field.NestedMetadata != nil {
			fv := dst.FieldByName(field.StructField)
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					fv.Set(reflect.New(fv.Type().Elem()))
				}
				fv = fv.Elem()
			}
			if err := extractFields(req, depot, field.NestedMetadata, fv, views); err != nil {
				return err
			}
			continue
		}

		raw, found, err := resolveField(req, depot, field, sources, views)
		if err != nil {
			return err
		}

		fv := dst.FieldByName(field.StructField)
		if !fv.IsValid() {
			continue
		}

		if !found {
			if fv.Kind() == reflect.Ptr {
				continue
			}
			continue
		}

		if err := setFieldValue(fv, raw); err != nil {
			return &ParseError{Kind: ParseErrDeserialize, Field: field.Name, Cause: err}
		}
	}
	return nil
}

// resolveField tries each source in order (name, then aliases) and
// returns the first value found.
func resolveField(req *Request, depot *Depot, field Field, sources []Source, views map[Source]sourceView) ([]string, bool, error) {
	names := append([]string{field.Name}, field.Aliases...)

	for _, src := range sources {
		if src == SourceDepot {
			if v, ok := lookupDepot(depot, field); ok {
				return []string{v}, true, nil
			}
			continue
		}

		view, err := materializeSource(req, src, views)
		if err != nil {
			return nil, false, err
		}

		for _, name := range names {
			if v, ok := view[name]; ok {
				return v, true, nil
			}
		}
	}
	return nil, false, nil
}

func lookupDepot(depot *Depot, field Field) (string, bool) {
	if depot == nil {
		return "", false
	}
	if v, ok := depot.GetString(field.Name); ok {
		return v, true
	}
	return "", false
}

// materializeSource builds (and caches) the multimap view for src.
func materializeSource(req *Request, src Source, views map[Source]sourceView) (sourceView, error) {
	if v, ok := views[src]; ok {
		return v, nil
	}

	view := sourceView{}
	switch src {
	case SourceParam:
		for _, p := range req.Params() {
			for _, rv := range p.Values {
				view[p.Name] = append(view[p.Name], rv.String())
			}
		}
	case SourceQuery:
		for name, vs := range req.Queries() {
			view[name] = vs
		}
	case SourceHeader:
		for name, vs := range req.Header {
			view[strings.ToLower(name)] = vs
		}
	case SourceCookie:
		for _, c := range req.Cookies() {
			view[c.Name] = append(view[c.Name], c.Value)
		}
	case SourceForm:
		form, err := req.Form()
		if err != nil {
			return nil, err
		}
		for name, vs := range form {
			view[name] = vs
		}
	case SourceFormData:
		form, _, err := req.MultipartForm()
		if err != nil {
			return nil, err
		}
		for name, vs := range form {
			view[name] = vs
		}
	case SourceBody:
		// The body is not read here: the SourceBody view stays empty, so
		// no field is ever found in it. FromRequestBody decodes a whole
		// struct from a JSON or YAML body instead.
	}

	views[src] = view
	return view, nil
}

// FromRequestBody extracts dst entirely from a JSON or YAML request body,
// per the round-trip invariant in §8 item 5.
func FromRequestBody(req *Request, dst interface{}) error {
	payload, err := req.Payload()
	if err != nil {
		return &ParseError{Kind: ParseErrIO, Cause: err}
	}
	if len(payload) == 0 {
		return &ParseError{Kind: ParseErrEmptyBody}
	}

	switch req.ContentType() {
	case "application/json", "":
		if err := json.Unmarshal(payload, dst); err != nil {
			return &ParseError{Kind: ParseErrJSON, Cause: err}
		}
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.Unmarshal(payload, dst); err != nil {
			return &ParseError{Kind: ParseErrDeserialize, Cause: err}
		}
	default:
		return &ParseError{Kind: ParseErrInvalidContentType}
	}
	return nil
}

// setFieldValue converts raw (one or more string values) into fv,
// supporting scalars, strings, and slices (from repeated query/form/param
// values), per §4.4 step 3.
func setFieldValue(fv reflect.Value, raw []string) error {
	if fv.Kind() == reflect.Slice {
		fv.Set(reflect.MakeSlice(fv.Type(), len(raw), len(raw)))
		for i, s := range raw {
			if err := setScalar(fv.Index(i), s); err != nil {
				return err
			}
		}
		return nil
	}

	if len(raw) == 0 {
		return nil
	}

	if fv.Kind() == reflect.Ptr {
		fv.Set(reflect.New(fv.Type().Elem()))
		return setScalar(fv.Elem(), raw[0])
	}

	return setScalar(fv, raw[0])
}

func setScalar(fv reflect.Value, s string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		fv.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return &ParseError{Kind: ParseErrDeserialize}
	}
	return nil
}
