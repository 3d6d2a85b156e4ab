package mcp

import "encoding/json"

// ContentBlocksFrom converts an arbitrary handler return value into a slice
// of ContentBlock: a string becomes one text block, a []ContentBlock is
// taken as-is, and any other value is JSON-serialized into a single text
// block.
func ContentBlocksFrom(v any) []ContentBlock {
	switch t := v.(type) {
	case nil:
		return nil
	case []ContentBlock:
		return t
	case ContentBlock:
		return []ContentBlock{t}
	case string:
		return []ContentBlock{TextContent(t)}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return []ContentBlock{TextContent(err.Error())}
		}
		return []ContentBlock{TextContent(string(b))}
	}
}

// ResourceContentsFrom converts an arbitrary read-handler return value into
// ResourceContents for the given uri and mimeType. A ResourceContents value
// passes through, with an empty URI or MimeType filled from the arguments; a
// string becomes text; a []byte becomes a base64 blob. Any other value is
// JSON-serialized into text.
func ResourceContentsFrom(uri, mimeType string, v any) ResourceContents {
	switch t := v.(type) {
	case ResourceContents:
		if t.URI == "" {
			t.URI = uri
		}
		if t.MimeType == "" {
			t.MimeType = mimeType
		}
		return t
	case string:
		return ResourceContents{URI: uri, MimeType: mimeType, Text: t}
	case []byte:
		return ResourceContents{URI: uri, MimeType: mimeType, Blob: encodeBase64(t)}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ResourceContents{URI: uri, MimeType: mimeType, Text: err.Error()}
		}
		return ResourceContents{URI: uri, MimeType: mimeType, Text: string(b)}
	}
}
