package embeddings

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Body text beyond this is elided; embeddings degrade on very long inputs
// anyway.
const maxChunkBodyChars = 2000

const previewChars = 200

// ChunkID derives a stable UUID from the symbol's identity, so re-indexing
// the same symbol overwrites its point instead of duplicating it.
func ChunkID(filePath, qualifiedName string) string {
	sum := sha256.Sum256([]byte(filePath + qualifiedName))
	id, _ := uuid.FromBytes(sum[:16])
	return id.String()
}

// BuildChunks produces one embedding unit per indexable symbol. Symbols
// with neither a body nor a docstring carry no embeddable content and are
// skipped — notably everything the regex fallback produced.
func BuildChunks(repoID string, symbols []models.Symbol) []models.Chunk {
	var chunks []models.Chunk
	for _, sym := range symbols {
		switch sym.Kind {
		case models.SymbolClass, models.SymbolInterface, models.SymbolFunction, models.SymbolMethod:
		default:
			continue
		}
		if sym.Body == "" && sym.Docstring == "" {
			continue
		}

		content := chunkContent(sym)
		preview := content
		if len(preview) > previewChars {
			preview = preview[:previewChars]
		}

		chunks = append(chunks, models.Chunk{
			ID:             ChunkID(sym.FilePath, sym.QualifiedName),
			RepoID:         repoID,
			FilePath:       sym.FilePath,
			LineStart:      sym.LineStart,
			LineEnd:        sym.LineEnd,
			SymbolName:     sym.QualifiedName,
			SymbolType:     string(sym.Kind),
			Content:        content,
			ContentPreview: preview,
		})
	}
	return chunks
}

func chunkContent(sym models.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", sym.FilePath)
	fmt.Fprintf(&b, "Type: %s\n", sym.Kind)
	if sym.Parent != "" {
		fmt.Fprintf(&b, "Parent: %s\n", sym.Parent)
	}
	if sym.Signature != "" {
		fmt.Fprintf(&b, "Signature: %s\n", sym.Signature)
	}
	if sym.Docstring != "" {
		fmt.Fprintf(&b, "Docstring: %s\n", sym.Docstring)
	}

	body := sym.Body
	if len(body) > maxChunkBodyChars {
		body = body[:maxChunkBodyChars] + "\n... [elided]"
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}
