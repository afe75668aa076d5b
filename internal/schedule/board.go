package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

const (
	maxNewsAuthorLen = 50
	maxNewsDetailLen = 500
)

// requireStaff admits admins and chiefs.
func (s *Service) requireStaff(c identity.Claims) error {
	if !s.roles.HasAny(c, identity.RoleAdmin, identity.RoleChief) {
		return ticketing.ErrForbidden
	}
	return nil
}

// NewsPatch carries the editable fields of an announcement. Nil fields
// keep their stored value.
type NewsPatch struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Detail *string `json:"detail"`
}

// ValidateNews checks the length limits of an announcement.
func ValidateNews(n *model.News) error {
	switch {
	case n.Title == "" || utf8.RuneCountInString(n.Title) > maxTextLen:
		return ticketing.Invalid("title", fmt.Sprintf("must be 1-%d characters", maxTextLen))
	case n.Author == "" || utf8.RuneCountInString(n.Author) > maxNewsAuthorLen:
		return ticketing.Invalid("author", fmt.Sprintf("must be 1-%d characters", maxNewsAuthorLen))
	case n.Detail != nil && utf8.RuneCountInString(*n.Detail) > maxNewsDetailLen:
		return ticketing.Invalid("detail", fmt.Sprintf("longer than %d characters", maxNewsDetailLen))
	}
	return nil
}

// CreateNews posts an announcement stamped with the current JST time.
// Admins and chiefs only.
func (s *Service) CreateNews(ctx context.Context, c identity.Claims, n *model.News) error {
	if err := s.requireStaff(c); err != nil {
		return err
	}
	if err := ValidateNews(n); err != nil {
		return err
	}
	n.Timestamp = clock.Format(s.clk.Now())
	if err := s.News.Create(ctx, n); err != nil {
		return err
	}
	s.invalidate(ctx, ticketing.KindNews, n.ID)
	s.log.InfoContext(ctx, "news posted", slog.String("news_id", n.ID), slog.String("author", n.Author))
	return nil
}

// GetNews returns one announcement.
func (s *Service) GetNews(ctx context.Context, id string) (*model.News, error) {
	n, err := s.News.GetByID(ctx, id)
	return n, translate(err, "news "+id)
}

// ListNews returns every announcement, newest first.
func (s *Service) ListNews(ctx context.Context) ([]model.News, error) {
	return s.News.List(ctx)
}

// UpdateNews applies patch to an announcement. Admins and chiefs only.
func (s *Service) UpdateNews(ctx context.Context, c identity.Claims, id string, patch NewsPatch) (*model.News, error) {
	if err := s.requireStaff(c); err != nil {
		return nil, err
	}
	n, err := s.GetNews(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Author != nil {
		n.Author = *patch.Author
	}
	if patch.Detail != nil {
		n.Detail = patch.Detail
	}
	if err := ValidateNews(n); err != nil {
		return nil, err
	}
	if err := s.News.Update(ctx, n); err != nil {
		return nil, translate(err, "news "+id)
	}
	s.invalidate(ctx, ticketing.KindNews, id)
	return n, nil
}

// DeleteNews removes an announcement. Admins and chiefs only.
func (s *Service) DeleteNews(ctx context.Context, c identity.Claims, id string) error {
	if err := s.requireStaff(c); err != nil {
		return err
	}
	if err := s.News.Delete(ctx, id); err != nil {
		return translate(err, "news "+id)
	}
	s.invalidate(ctx, ticketing.KindNews, id)
	return nil
}

func validBoard(board string) error {
	if board != model.HebeNowPlaying && board != model.HebeUpNext {
		return ticketing.Invalid("board", fmt.Sprintf("unknown board %q", board))
	}
	return nil
}

// HebeBoard returns the group shown on board. An unset board is
// reported as missing.
func (s *Service) HebeBoard(ctx context.Context, board string) (*model.HebeBoard, error) {
	if err := validBoard(board); err != nil {
		return nil, err
	}
	b, err := s.Hebe.Get(ctx, board)
	return b, translate(err, "hebe board "+board)
}

// SetHebeBoard shows groupID on board. Only hebe groups may appear on a
// board. Admins and chiefs only.
func (s *Service) SetHebeBoard(ctx context.Context, c identity.Claims, board, groupID string) (*model.HebeBoard, error) {
	if err := s.requireStaff(c); err != nil {
		return nil, err
	}
	if err := validBoard(board); err != nil {
		return nil, err
	}
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Type != model.GroupTypeHebe {
		return nil, ticketing.Invalid("group_id", "not a hebe group")
	}
	if err := s.Hebe.Set(ctx, board, groupID); err != nil {
		return nil, translate(err, "hebe board "+board)
	}
	s.invalidate(ctx, ticketing.KindHebe, board)
	s.log.InfoContext(ctx, "hebe board set", slog.String("board", board), slog.String("group_id", groupID))
	return &model.HebeBoard{Board: board, GroupID: groupID}, nil
}
