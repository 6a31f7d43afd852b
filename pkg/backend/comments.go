package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

const commentsResource = "comments"

const unknownAuthor = "unknown"

type commentWire struct {
	ID             flexID    `json:"id"`
	Product        reference `json:"product"`
	User           reference `json:"user"`
	Text           string    `json:"text"`
	CreatedAt      flexTime  `json:"createdAt"`
	CreatedAtSnake flexTime  `json:"created_at"`
}

// model normalizes a server comment. Server comments never carry replies.
func (w commentWire) model(now time.Time) models.Comment {
	userID := firstNonEmpty(w.User.ID, w.User.Text)
	if userID == "" {
		userID = unknownAuthor
	}
	username := firstNonEmpty(w.User.Username)
	if username == "" {
		username = unknownAuthor
	}
	return models.Comment{
		ID:        string(w.ID),
		ProductID: w.Product.idOrText(),
		UserID:    userID,
		Username:  username,
		IsAdmin:   w.User.IsSuperuser,
		Text:      w.Text,
		CreatedAt: firstTime(now, w.CreatedAt, w.CreatedAtSnake),
		Replies:   []models.Reply{},
	}
}

type cachedComments struct {
	comments  []models.Comment
	fetchedAt time.Time
}

type commentInput struct {
	Product string `json:"product"`
	Text    string `json:"text"`
}

// ListComments returns the server comments for a product. Results are reused
// for the cache TTL; posting a comment for the product invalidates them.
func (c *Client) ListComments(ctx context.Context, productID string) ([]models.Comment, error) {
	productID = strings.TrimSpace(productID)
	now := c.now()

	c.commentsMu.Lock()
	if cached, ok := c.comments[productID]; ok && c.commentTTL > 0 && now.Sub(cached.fetchedAt) < c.commentTTL {
		out := cloneComments(cached.comments)
		c.commentsMu.Unlock()
		return out, nil
	}
	c.commentsMu.Unlock()

	var wires []commentWire
	query := url.Values{"product": []string{productID}}
	if err := c.doJSON(ctx, http.MethodGet, commentsResource, resourcePath(commentsResource, ""), query, nil, &wires); err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(wires))
	for _, w := range wires {
		comment := w.model(now)
		if comment.ProductID == "" {
			comment.ProductID = productID
		}
		comments = append(comments, comment)
	}

	c.commentsMu.Lock()
	c.comments[productID] = cachedComments{comments: comments, fetchedAt: now}
	c.commentsMu.Unlock()
	return cloneComments(comments), nil
}

// CreateComment posts a comment. Only the server id and timestamp of the
// returned record are meaningful to callers.
func (c *Client) CreateComment(ctx context.Context, productID, text string) (models.Comment, error) {
	var w commentWire
	input := commentInput{Product: productID, Text: text}
	if err := c.doJSON(ctx, http.MethodPost, commentsResource, resourcePath(commentsResource, ""), nil, input, &w); err != nil {
		return models.Comment{}, err
	}
	c.InvalidateComments(productID)
	comment := w.model(c.now())
	if comment.ProductID == "" {
		comment.ProductID = productID
	}
	return comment, nil
}

// InvalidateComments drops the cached list for a product.
func (c *Client) InvalidateComments(productID string) {
	c.commentsMu.Lock()
	delete(c.comments, strings.TrimSpace(productID))
	c.commentsMu.Unlock()
}

func cloneComments(in []models.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(in))
	for _, comment := range in {
		out = append(out, comment.Clone())
	}
	return out
}
