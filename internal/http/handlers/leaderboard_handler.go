// Leaderboard HTTP handlers.
//
//   - GET {base}/leaderboard  ranked per-user totals for a local day
//   - GET {base}/totals       grand total for a local day
//
// Both accept ?day=<offset> (0 today, -1 yesterday, down to -366) and answer
// with a weak ETag derived from the window's row count and latest change, so
// polling clients get 304 while nothing moved.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/sales-leaderboard-bot/internal/money"
	"github.com/tbourn/sales-leaderboard-bot/internal/render"
	"github.com/tbourn/sales-leaderboard-bot/internal/services"
	"github.com/tbourn/sales-leaderboard-bot/internal/utils"
	"github.com/tbourn/sales-leaderboard-bot/internal/window"
)

const dateLayout = "2006-01-02"

// StandingResponse is one ranked entry.
type StandingResponse struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Total     string `json:"total"`
	Formatted string `json:"formatted"`
}

// LeaderboardResponse is the body of GET /leaderboard.
type LeaderboardResponse struct {
	Date      string             `json:"date"`
	Timezone  string             `json:"timezone"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	Title     string             `json:"title"`
	Standings []StandingResponse `json:"standings"`
	Total     string             `json:"total"`
	Formatted string             `json:"formatted"`
}

// TotalsResponse is the body of GET /totals.
type TotalsResponse struct {
	Date      string `json:"date"`
	Timezone  string `json:"timezone"`
	Entries   int64  `json:"entries"`
	Total     string `json:"total"`
	Formatted string `json:"formatted"`
	Text      string `json:"text"`
}

// Leaderboard handles GET /leaderboard. The optional community query
// parameter resolves display names in that server or group.
func (h *Handlers) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	w, offset, good := h.window(c)
	if !good {
		return
	}
	community := strings.TrimSpace(c.Query("community"))
	if h.notModified(c, "lb", w, community) {
		return
	}

	board, err := h.boards.Board(ctx, w)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeLeaderboardFailed, err.Error())
		return
	}

	var dir services.MemberDirectory
	if community != "" {
		dir = h.names
	}
	lines := services.Lines(ctx, dir, community, board.Standings)

	card := render.TodayCard(lines)
	if offset != 0 {
		card = render.FinalCard(w.Date(), lines, board.Total)
	}

	resp := LeaderboardResponse{
		Date:      w.Date().Format(dateLayout),
		Timezone:  w.Date().Location().String(),
		Start:     w.Start,
		End:       w.End,
		Title:     card.Title,
		Standings: make([]StandingResponse, 0, len(lines)),
		Total:     board.Total.StringFixed(2),
		Formatted: money.Format(board.Total),
	}
	for i, st := range board.Standings {
		resp.Standings = append(resp.Standings, StandingResponse{
			Rank:      st.Rank,
			UserID:    st.UserID,
			Name:      lines[i].Name,
			Total:     st.Total.StringFixed(2),
			Formatted: money.Format(st.Total),
		})
	}
	ok(c, http.StatusOK, resp)
}

// Totals handles GET /totals.
func (h *Handlers) Totals(c *gin.Context) {
	ctx := c.Request.Context()
	w, _, good := h.window(c)
	if !good {
		return
	}

	count, last, err := h.boards.Version(ctx, w)
	if err == nil {
		if h.checkETag(c, etag("totals", w, "", count, last)) {
			return
		}
	}

	total, err := h.boards.GrandTotal(ctx, w)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeLeaderboardFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TotalsResponse{
		Date:      w.Date().Format(dateLayout),
		Timezone:  w.Date().Location().String(),
		Entries:   count,
		Total:     total.StringFixed(2),
		Formatted: money.Format(total),
		Text:      render.TotalLine(w.Date(), total),
	})
}

// window parses ?day and resolves it. It writes the 400 itself and reports
// false on bad input.
func (h *Handlers) window(c *gin.Context) (window.Window, int, bool) {
	offset, err := utils.IntParam(c.Query("day"), 0)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDay, "day must be an integer offset")
		return window.Window{}, 0, false
	}
	w, err := h.boards.Window(offset)
	if errors.Is(err, services.ErrInvalidDayOffset) {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDay,
			fmt.Sprintf("day must be between -%d and 0", services.MaxDayOffset))
		return window.Window{}, 0, false
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return window.Window{}, 0, false
	}
	return w, offset, true
}

// notModified sets the ETag for w and answers 304 when the client already
// has it. Version errors only disable the validator.
func (h *Handlers) notModified(c *gin.Context, kind string, w window.Window, community string) bool {
	count, last, err := h.boards.Version(c.Request.Context(), w)
	if err != nil {
		return false
	}
	return h.checkETag(c, etag(kind, w, community, count, last))
}

func (h *Handlers) checkETag(c *gin.Context, tag string) bool {
	c.Header("ETag", tag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == tag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func etag(kind string, w window.Window, community string, count int64, last *time.Time) string {
	var ts int64
	if last != nil {
		ts = last.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%s:%s:%d:%d"`, kind, w.Date().Format(dateLayout), community, count, ts)
}
