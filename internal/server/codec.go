package server

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.WrapError(err, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.WrapError(err, "encode response")
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.WrapError(err, "encode response")
	}
	return st, nil
}

// fromStruct decodes a request document into dst.
func fromStruct(in *structpb.Struct, dst any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return common.NewInputError(common.CodeMalformedInput, "unreadable request", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return common.NewInputError(common.CodeMalformedInput, "request does not match the expected shape", err)
	}
	return nil
}

// rawJSON returns the request document as JSON bytes.
func rawJSON(in *structpb.Struct) ([]byte, error) {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, common.NewInputError(common.CodeMalformedInput, "unreadable request", err)
	}
	return b, nil
}
