package chunk

import (
	"context"
	"strings"
	"time"
)

// Default character-based sizes for SizeSplitter. Distinct from the
// token-based DefaultMaxChunkTokens/DefaultOverlapTokens the AST splitter
// uses for its own line-count fallback: these are exact character counts.
const (
	DefaultChunkSizeChars    = 2500
	DefaultChunkOverlapChars = 300
)

// SizeSplitterOptions configures SizeSplitter.
type SizeSplitterOptions struct {
	ChunkSize    int // maximum characters per chunk
	ChunkOverlap int // characters of trailing content repeated at the start of the next chunk
}

// SizeSplitter cuts a file into a sliding window of fixed-size chunks
// measured in characters, never splitting in the middle of a line. It is
// used both as a standalone Chunker for content the AST splitter can't
// parse, and internally as the residual-region splitter for symbols too
// large for a single chunk.
type SizeSplitter struct {
	options SizeSplitterOptions
}

var _ Chunker = (*SizeSplitter)(nil)

// NewSizeSplitter creates a SizeSplitter with the default 2500/300 sizing.
func NewSizeSplitter() *SizeSplitter {
	return NewSizeSplitterWithOptions(SizeSplitterOptions{})
}

// NewSizeSplitterWithOptions creates a SizeSplitter with explicit sizing.
func NewSizeSplitterWithOptions(opts SizeSplitterOptions) *SizeSplitter {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSizeChars
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = DefaultChunkOverlapChars
	}
	return &SizeSplitter{options: opts}
}

// SupportedExtensions returns nil: the size splitter accepts any language,
// it is the splitter of last resort.
func (s *SizeSplitter) SupportedExtensions() []string {
	return nil
}

// Chunk splits file.Content into character-bounded, line-aligned windows.
func (s *SizeSplitter) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	return s.SplitLines(file.Path, string(file.Content), file.Language), nil
}

// SplitLines performs the actual windowing over raw content, independent of
// FileInput so CodeChunker can reuse it for a single oversized symbol's
// content as well as for a whole unparsed file.
func (s *SizeSplitter) SplitLines(path, content, language string) []*Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	now := time.Now()

	var chunks []*Chunk
	start := 0
	for start < len(lines) {
		end, size := s.window(lines, start)

		chunkLines, firstLine, lastLine := trimBlankEdges(lines, start, end)
		if lastLine >= firstLine {
			text := strings.Join(chunkLines, "\n")
			chunks = append(chunks, &Chunk{
				ID:          generateChunkID(path, text),
				FilePath:    path,
				Content:     text,
				RawContent:  text,
				ContentType: ContentTypeText,
				Language:    language,
				StartLine:   firstLine + 1, // 1-indexed
				EndLine:     lastLine + 1,
				Metadata:    make(map[string]string),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}

		if end >= len(lines) {
			break
		}
		start = s.nextStart(lines, end, size)
	}
	return chunks
}

// window returns the exclusive end index of the next chunk starting at
// start, and the character count it covers. At least one line is always
// included even if that single line alone exceeds ChunkSize, so a chunk
// boundary never lands mid-line.
func (s *SizeSplitter) window(lines []string, start int) (end int, size int) {
	end = start
	for end < len(lines) {
		lineSize := len(lines[end]) + 1 // +1 for the newline rejoining
		if end > start && size+lineSize > s.options.ChunkSize {
			break
		}
		size += lineSize
		end++
	}
	return end, size
}

// nextStart walks backward from end over enough lines to cover
// ChunkOverlap characters, so the next window repeats that trailing
// content. It never goes past end's own window, guaranteeing progress.
func (s *SizeSplitter) nextStart(lines []string, end, windowSize int) int {
	if s.options.ChunkOverlap == 0 {
		return end
	}
	overlapChars := 0
	i := end
	for i > 0 && overlapChars < s.options.ChunkOverlap {
		lineSize := len(lines[i-1]) + 1
		if overlapChars+lineSize >= windowSize {
			break
		}
		i--
		overlapChars += lineSize
	}
	if i >= end {
		return end
	}
	return i
}

// trimBlankEdges drops leading and trailing blank-only lines from
// lines[start:end], returning the trimmed slice and its absolute first/last
// line indices (lastLine < firstLine signals an all-blank window).
func trimBlankEdges(lines []string, start, end int) (trimmed []string, firstLine, lastLine int) {
	firstLine, lastLine = start, end-1
	for firstLine <= lastLine && strings.TrimSpace(lines[firstLine]) == "" {
		firstLine++
	}
	for lastLine >= firstLine && strings.TrimSpace(lines[lastLine]) == "" {
		lastLine--
	}
	if lastLine < firstLine {
		return nil, firstLine, lastLine
	}
	return lines[firstLine : lastLine+1], firstLine, lastLine
}
