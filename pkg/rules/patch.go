package rules

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// Patch operation names.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpCopy    = "copy"
	OpMove    = "move"
	OpTest    = "test"
)

// PatchOp is one entry of a JSON patch payload.
type PatchOp struct {
	Op    string
	Path  string
	From  string
	Value any
}

// ParsePatch decodes a JSON patch payload. Anything that is not an array
// yields nil. Entries that are not objects or have no path are dropped.
func ParsePatch(raw []byte) []PatchOp {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	payload := gjson.ParseBytes(raw)
	if !payload.IsArray() {
		return nil
	}

	ops := make([]PatchOp, 0)
	payload.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		path := item.Get("path")
		if path.Type != gjson.String || path.String() == "" {
			return true
		}
		ops = append(ops, PatchOp{
			Op:    item.Get("op").String(),
			Path:  path.String(),
			From:  item.Get("from").String(),
			Value: item.Get("value").Value(),
		})
		return true
	})
	return ops
}

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// PointerBase returns the first reference token of a JSON pointer:
// "/resources/gold" yields "resources". A missing leading slash is tolerated.
func PointerBase(pointer string) string {
	p := strings.TrimPrefix(strings.TrimSpace(pointer), "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return pointerUnescaper.Replace(p)
}
