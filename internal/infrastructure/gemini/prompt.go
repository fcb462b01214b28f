package gemini

import (
	"fmt"
	"strings"

	"github.com/recipetube/backend/internal/domain"
)

const promptTemplate = `You are an expert at extracting recipes from cooking videos. From the video information below, extract the ingredient list, the cooking steps and descriptive tags.
If the information is incomplete, fill the gaps with common cooking practice for this dish.
Answer in the language of the video.

[Video title]
%s

[Video description]
%s

[Channel name]
%s
%s
Respond with a single JSON object in exactly this shape:
{
  "ingredients": ["ingredient 1 with amount", "ingredient 2 with amount", ...],
  "steps": ["step 1", "step 2", ...],
  "tags": ["tag 1", "tag 2", ...]
}
`

// BuildPrompt embeds the video metadata into the extraction instructions.
// The comments section is omitted when there are no comments.
func BuildPrompt(input domain.ExtractionInput) string {
	comments := ""
	var nonEmpty []string
	for _, c := range input.Comments {
		if c = strings.TrimSpace(c); c != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	if len(nonEmpty) > 0 {
		comments = "\n[Comments]\n" + strings.Join(nonEmpty, "\n\n") + "\n"
	}
	return fmt.Sprintf(promptTemplate, input.Title, input.Description, input.ChannelTitle, comments)
}
