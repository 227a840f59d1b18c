package council

import (
	"context"
	"fmt"
	"strings"

	"thailaw-council/internal/gateway"
)

// GenerateTitle produces a short conversation title from the first user
// query using the configured fast title model.
func (o *Orchestrator) GenerateTitle(ctx context.Context, userQuery string) (string, error) {
	messages := []gateway.Message{
		{Role: gateway.RoleUser, Content: buildTitlePrompt(userQuery)},
	}

	text, err := o.gw.Invoke(ctx, o.cfg.TitleModel, messages, o.cfg.TitleTimeout)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := strings.TrimSpace(text)
	title = strings.Trim(title, "\"'")

	// Truncate by runes; titles may be Thai.
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}

	return title, nil
}
