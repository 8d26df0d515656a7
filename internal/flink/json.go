package flink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseJSON parses a JSON document into a Value. Object members keep source order and
// repeated keys are preserved.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseJSONValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("parse json: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("parse json: unexpected data after top-level value")
	}
	return v, nil
}

func parseJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		v, err := numberValue(t.String())
		if err != nil {
			return Value{}, fmt.Errorf("number %s: %w", t, err)
		}
		return v, nil
	case json.Delim:
		switch t {
		case '{':
			return parseJSONObject(dec)
		case '[':
			return parseJSONArray(dec)
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func parseJSONObject(dec *json.Decoder) (Value, error) {
	obj := Value{Kind: KindObject}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key: unexpected token %v", tok)
		}
		v, err := parseJSONValue(dec)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", key, err)
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: v})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return obj, nil
}

func parseJSONArray(dec *json.Decoder) (Value, error) {
	arr := Value{Kind: KindArray}
	for i := 0; dec.More(); i++ {
		v, err := parseJSONValue(dec)
		if err != nil {
			return Value{}, fmt.Errorf("[%d]: %w", i, err)
		}
		arr.Items = append(arr.Items, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return arr, nil
}
