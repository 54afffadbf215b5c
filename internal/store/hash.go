package store

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// ComputeSymbolsHash computes a deterministic hash of a file's exported
// symbol set. Covers name, kind, container, detail, doc and both ranges, in
// declaration order. Two extractions with equal hashes are interchangeable
// for every dependent of the file.
func ComputeSymbolsHash(symbols []*Symbol) string {
	h := xxh3.New()
	for _, s := range symbols {
		fmt.Fprintf(h, "sym:%s:%s:%s\n", s.Kind, s.ContainerName, s.Name)
		fmt.Fprintf(h, "detail:%s\n", s.Detail)
		fmt.Fprintf(h, "doc:%q\n", s.Doc)
		fmt.Fprintf(h, "range:%d:%d:%d:%d\n", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
		fmt.Fprintf(h, "name:%d:%d:%d\n", s.NameLine, s.NameCol, s.NameEndCol)
		fmt.Fprintf(h, "body:%v\n", s.HasBody)
	}
	return hex.EncodeToString(h.Sum(nil))
}
