package proposal

import (
	"context"
	"log/slog"

	"proposepress/internal/lifecycle"
	"proposepress/internal/models"
)

// FilterDate shows the proposal in place of the item's date until it is
// promoted. It serves every date kind the same way so the date, the date
// heading and the time never disagree.
func (p *Plugin) FilterDate(ctx context.Context, value string, _ lifecycle.DateKind, format string, item *models.Content) string {
	if item == nil || !p.Supports(item.Type) {
		return value
	}
	proposed, ok, err := p.ProposedDate(ctx, item)
	if err != nil {
		slog.Error("read proposed date for display", "id", item.ID, "error", err)
		return value
	}
	if !ok {
		return value
	}
	if formatted := p.zone.FormatLocal(format, proposed); formatted != "" {
		return formatted
	}
	return value
}
