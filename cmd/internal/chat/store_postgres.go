package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/cmd/identity/ids"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
// - Per-conversation transactional advisory locks serialize the writes that
//   touch aggregate state (append + unread increments, bulk read + counter
//   reset, pair creation), so concurrent sends and read-acknowledgements
//   cannot lose counter updates.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "courier").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		if schema == "" || !validPGIdent.MatchString(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

var validPGIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewPostgresStore constructs a Postgres-backed chat store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "courier"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) ident(table string) string {
	return fmt.Sprintf("%q.%q", s.schema, table)
}

const messageColumns = `id, conversation_id, sender_id, kind, body_text, image_url, image_filename, image_size, status, sent_at, delivered_at, read_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var (
		m             Message
		text          *string
		imgURL        *string
		imgFilename   *string
		imgSize       *int64
		kind, status  string
		deliveredAt   *time.Time
		readAt        *time.Time
	)
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &kind, &text, &imgURL, &imgFilename, &imgSize, &status, &m.SentAt, &deliveredAt, &readAt)
	if err != nil {
		return nil, err
	}
	m.Kind = Kind(kind)
	m.Status = Status(status)
	if text != nil {
		m.Text = *text
	}
	if imgURL != nil {
		img := Image{URL: *imgURL}
		if imgFilename != nil {
			img.Filename = *imgFilename
		}
		if imgSize != nil {
			img.Size = *imgSize
		}
		m.Image = &img
	}
	m.DeliveredAt = deliveredAt
	m.ReadAt = readAt
	return &m, nil
}

func (s *PostgresStore) lockConversation(ctx context.Context, tx pgx.Tx, key string) error {
	// Serialize all aggregate-affecting writes per conversation.
	// hashtextextended reduces collision risk vs hashtext (still a hash, but better).
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// AppendMessage persists msg and applies the conversation aggregate in one transaction.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockConversation(ctx, tx, msg.ConversationID); err != nil {
		return err
	}

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM `+s.ident("conversations")+` WHERE id = $1`, msg.ConversationID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pg append: %w", ErrConversationNotFound)
	}
	if err != nil {
		return err
	}

	var text, imgURL, imgFilename *string
	var imgSize *int64
	if msg.Text != "" {
		text = &msg.Text
	}
	if msg.Image != nil {
		imgURL = &msg.Image.URL
		if msg.Image.Filename != "" {
			imgFilename = &msg.Image.Filename
		}
		if msg.Image.Size > 0 {
			imgSize = &msg.Image.Size
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.ident("messages")+` (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, NULL)`,
		msg.ID, msg.ConversationID, msg.SenderID, string(msg.Kind), text, imgURL, imgFilename, imgSize, string(msg.Status), msg.SentAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+s.ident("conversations")+` SET last_message_id = $2, last_message_at = $3 WHERE id = $1`,
		msg.ConversationID, msg.ID, msg.SentAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+s.ident("conversation_unread")+` SET unread = unread + 1
		 WHERE conversation_id = $1 AND user_id <> $2`,
		msg.ConversationID, msg.SenderID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetMessage fetches a message by id.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM `+s.ident("messages")+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pg get: %w", ErrMessageNotFound)
	}
	return m, err
}

// UpdateMessageStatus applies a guarded forward-only transition in a single
// statement; the WHERE clause is the concurrency guard.
func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, id string, to Status, at time.Time) (*Message, error) {
	var row pgx.Row
	switch to {
	case StatusDelivered:
		row = s.pool.QueryRow(ctx,
			`UPDATE `+s.ident("messages")+`
			 SET status = 'delivered', delivered_at = $2
			 WHERE id = $1 AND status = 'sent'
			 RETURNING `+messageColumns, id, at)
	case StatusRead:
		row = s.pool.QueryRow(ctx,
			`UPDATE `+s.ident("messages")+`
			 SET status = 'read', read_at = $2, delivered_at = COALESCE(delivered_at, $2)
			 WHERE id = $1 AND status IN ('sent', 'delivered')
			 RETURNING `+messageColumns, id, at)
	default:
		return nil, fmt.Errorf("pg status: %w: cannot transition to %q", ErrInvalidTransition, to)
	}

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish missing from already-past.
		var one int
		probe := s.pool.QueryRow(ctx, `SELECT 1 FROM `+s.ident("messages")+` WHERE id = $1`, id).Scan(&one)
		if errors.Is(probe, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pg status: %w", ErrMessageNotFound)
		}
		if probe != nil {
			return nil, probe
		}
		return nil, fmt.Errorf("pg status: %w: no forward move to %s", ErrInvalidTransition, to)
	}
	return m, err
}

// MessagesByConversation returns a history window in ascending sent order.
func (s *PostgresStore) MessagesByConversation(ctx context.Context, conversationID string, page Page) ([]Message, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if page.Before.IsZero() {
		rows, err = s.pool.Query(ctx,
			`SELECT `+messageColumns+` FROM `+s.ident("messages")+`
			 WHERE conversation_id = $1
			 ORDER BY sent_at DESC, id DESC LIMIT $2`,
			conversationID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+messageColumns+` FROM `+s.ident("messages")+`
			 WHERE conversation_id = $1 AND sent_at < $2
			 ORDER BY sent_at DESC, id DESC LIMIT $3`,
			conversationID, page.Before, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers get ascending order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *PostgresStore) loadUnread(ctx context.Context, conversationIDs []string) (map[string]map[string]int, error) {
	byConv := make(map[string]map[string]int, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return byConv, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, user_id, unread FROM `+s.ident("conversation_unread")+`
		 WHERE conversation_id = ANY($1)`,
		conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var convID, userID string
		var n int
		if err := rows.Scan(&convID, &userID, &n); err != nil {
			return nil, err
		}
		if byConv[convID] == nil {
			byConv[convID] = make(map[string]int, 2)
		}
		byConv[convID][userID] = n
	}
	return byConv, rows.Err()
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c      Conversation
		lastID *string
		lastAt *time.Time
	)
	if err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &lastID, &lastAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	if lastID != nil {
		c.LastMessageID = *lastID
	}
	c.LastMessageAt = lastAt
	c.Unread = make(map[string]int, 2)
	return &c, nil
}

const conversationColumns = `id, user_lo, user_hi, last_message_id, last_message_at, created_at`

// GetConversation fetches a conversation with its unread counters.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM `+s.ident("conversations")+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pg get: %w", ErrConversationNotFound)
	}
	if err != nil {
		return nil, err
	}

	unread, err := s.loadUnread(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	if m := unread[c.ID]; m != nil {
		c.Unread = m
	}
	return c, nil
}

// FindConversation resolves the conversation for an unordered user pair.
func (s *PostgresStore) FindConversation(ctx context.Context, userA, userB string) (*Conversation, error) {
	lo, hi := pairKey(userA, userB)
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM `+s.ident("conversations")+` WHERE user_lo = $1 AND user_hi = $2`,
		lo, hi))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pg find: %w", ErrConversationNotFound)
	}
	if err != nil {
		return nil, err
	}

	unread, err := s.loadUnread(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	if m := unread[c.ID]; m != nil {
		c.Unread = m
	}
	return c, nil
}

// FindOrCreateConversation returns the pair's conversation, creating it at
// most once. Creation is serialized on a per-pair advisory lock; the unique
// index on (user_lo, user_hi) backstops it.
func (s *PostgresStore) FindOrCreateConversation(ctx context.Context, userA, userB string, now time.Time) (*Conversation, bool, error) {
	if userA == userB || userA == "" || userB == "" {
		return nil, false, fmt.Errorf("pg find_or_create: %w", ErrInvalidParticipants)
	}
	lo, hi := pairKey(userA, userB)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockConversation(ctx, tx, lo+"|"+hi); err != nil {
		return nil, false, err
	}

	c, err := scanConversation(tx.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM `+s.ident("conversations")+` WHERE user_lo = $1 AND user_hi = $2`,
		lo, hi))
	if err == nil {
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, false, commitErr
		}
		full, err := s.GetConversation(ctx, c.ID)
		return full, false, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.ident("conversations")+` (id, user_lo, user_hi, created_at) VALUES ($1, $2, $3, $4)`,
		id, lo, hi, now,
	); err != nil {
		return nil, false, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.ident("conversation_unread")+` (conversation_id, user_id, unread) VALUES ($1, $2, 0), ($1, $3, 0)`,
		id, lo, hi,
	); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	return &Conversation{
		ID:           id,
		Participants: [2]string{lo, hi},
		Unread:       map[string]int{lo: 0, hi: 0},
		CreatedAt:    now,
	}, true, nil
}

// MarkConversationRead applies the bulk read transition and the counter reset
// in one transaction under the conversation's advisory lock.
func (s *PostgresStore) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockConversation(ctx, tx, conversationID); err != nil {
		return nil, err
	}

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM `+s.ident("conversations")+` WHERE id = $1`, conversationID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pg mark_read: %w", ErrConversationNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`UPDATE `+s.ident("messages")+`
		 SET status = 'read', read_at = $3, delivered_at = COALESCE(delivered_at, $3)
		 WHERE conversation_id = $1 AND sender_id <> $2 AND status IN ('sent', 'delivered')
		 RETURNING id`,
		conversationID, readerID, at)
	if err != nil {
		return nil, err
	}
	var affected []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		affected = append(affected, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+s.ident("conversation_unread")+` SET unread = 0 WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, readerID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return affected, nil
}

// ConversationsForUser lists the user's conversations, newest activity first.
func (s *PostgresStore) ConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM `+s.ident("conversations")+`
		 WHERE user_lo = $1 OR user_hi = $1
		 ORDER BY last_message_at DESC NULLS LAST, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	var convIDs []string
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
		convIDs = append(convIDs, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	unread, err := s.loadUnread(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if m := unread[out[i].ID]; m != nil {
			out[i].Unread = m
		}
	}
	return out, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *PostgresStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if conversationID == "" || userID == "" {
		return false, nil
	}

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+s.ident("conversations")+`
		 WHERE id = $1 AND (user_lo = $2 OR user_hi = $2)`,
		conversationID, userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
