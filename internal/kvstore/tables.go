package kvstore

import (
	"encoding/json"
	"fmt"

	"github.com/OdielDomanie/clipper-bot/internal/models"
)

// CapturedStream is one member of a text channel's captured set.
type CapturedStream struct {
	Priority float64
	UID      models.StreamUID
}

// BlockedStream is one member of a guild's blocked set.
type BlockedStream struct {
	UnblockEpoch int64
	URL          string
}

// SetStream stores (or overwrites) a stream's serialized snapshot.
func (s *Store) SetStream(uid models.StreamUID, state []byte) error {
	return s.db.Exec(
		`INSERT INTO all_streams (uid, state) VALUES (?, ?)`, string(uid), state,
	).Error
}

// GetStream returns a stream's serialized snapshot, or ErrNotFound.
func (s *Store) GetStream(uid models.StreamUID) ([]byte, error) {
	var rows []struct{ State []byte }
	err := s.db.Raw(
		`SELECT state FROM all_streams WHERE uid = ?`, string(uid),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].State, nil
}

// AllStreams returns every persisted stream snapshot keyed by UID.
func (s *Store) AllStreams() (map[models.StreamUID][]byte, error) {
	var rows []struct {
		UID   string
		State []byte
	}
	if err := s.db.Raw(`SELECT uid, state FROM all_streams`).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.StreamUID][]byte, len(rows))
	for _, r := range rows {
		out[models.StreamUID(r.UID)] = r.State
	}
	return out, nil
}

// DeleteStream drops a stream snapshot. Deleting an absent key is a no-op.
func (s *Store) DeleteStream(uid models.StreamUID) error {
	return s.db.Exec(`DELETE FROM all_streams WHERE uid = ?`, string(uid)).Error
}

// AddRegistration adds a serialized watcher registration to a text channel's
// set. Re-adding an identical registration is idempotent.
func (s *Store) AddRegistration(chnID uint64, registration []byte) error {
	return s.db.Exec(
		`INSERT INTO registers (chn_id, registration) VALUES (?, ?)`, chnID, registration,
	).Error
}

// RemoveRegistration removes a serialized registration from a channel's set.
func (s *Store) RemoveRegistration(chnID uint64, registration []byte) error {
	return s.db.Exec(
		`DELETE FROM registers WHERE chn_id = ? AND registration = ?`, chnID, registration,
	).Error
}

// Registrations returns a channel's registration set.
func (s *Store) Registrations(chnID uint64) ([][]byte, error) {
	var rows []struct{ Registration []byte }
	err := s.db.Raw(
		`SELECT registration FROM registers WHERE chn_id = ?`, chnID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Registration)
	}
	return out, nil
}

// AllRegistrations returns every channel's registration set, used to resume
// watchers on startup.
func (s *Store) AllRegistrations() (map[uint64][][]byte, error) {
	var rows []struct {
		ChnID        uint64
		Registration []byte
	}
	if err := s.db.Raw(`SELECT chn_id, registration FROM registers`).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64][][]byte)
	for _, r := range rows {
		out[r.ChnID] = append(out[r.ChnID], r.Registration)
	}
	return out, nil
}

// AddCapturedStream records a stream under a text channel's captured set.
func (s *Store) AddCapturedStream(chnID uint64, priority float64, uid models.StreamUID) error {
	return s.db.Exec(
		`INSERT INTO captured_streams (chn_id, priority, uid) VALUES (?, ?, ?)`,
		chnID, priority, string(uid),
	).Error
}

// RemoveCapturedStream drops a stream from a channel's captured set,
// regardless of priority.
func (s *Store) RemoveCapturedStream(chnID uint64, uid models.StreamUID) error {
	return s.db.Exec(
		`DELETE FROM captured_streams WHERE chn_id = ? AND uid = ?`, chnID, string(uid),
	).Error
}

// CapturedStreams returns a channel's captured set.
func (s *Store) CapturedStreams(chnID uint64) ([]CapturedStream, error) {
	var rows []struct {
		Priority float64
		UID      string
	}
	err := s.db.Raw(
		`SELECT priority, uid FROM captured_streams WHERE chn_id = ?`, chnID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]CapturedStream, 0, len(rows))
	for _, r := range rows {
		out = append(out, CapturedStream{Priority: r.Priority, UID: models.StreamUID(r.UID)})
	}
	return out, nil
}

// PutSentClip records a delivered clip by message ID.
func (s *Store) PutSentClip(clip models.SentClip) error {
	record, err := json.Marshal(clip)
	if err != nil {
		return fmt.Errorf("encoding sent clip: %w", err)
	}
	return s.db.Exec(
		`INSERT INTO sent_clips (msg_id, record) VALUES (?, ?)`, clip.MessageID, record,
	).Error
}

// GetSentClip returns the clip record for a message ID, or ErrNotFound.
func (s *Store) GetSentClip(msgID uint64) (*models.SentClip, error) {
	var rows []struct{ Record []byte }
	err := s.db.Raw(`SELECT record FROM sent_clips WHERE msg_id = ?`, msgID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var clip models.SentClip
	if err := json.Unmarshal(rows[0].Record, &clip); err != nil {
		return nil, fmt.Errorf("decoding sent clip: %w", err)
	}
	return &clip, nil
}

// PutSentScreenshot records a delivered screenshot by message ID.
func (s *Store) PutSentScreenshot(ss models.SentScreenshot) error {
	record, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("encoding sent screenshot: %w", err)
	}
	return s.db.Exec(
		`INSERT INTO sent_screenshots (msg_id, record) VALUES (?, ?)`, ss.MessageID, record,
	).Error
}

// GetSentScreenshot returns the screenshot record for a message ID, or
// ErrNotFound.
func (s *Store) GetSentScreenshot(msgID uint64) (*models.SentScreenshot, error) {
	var rows []struct{ Record []byte }
	err := s.db.Raw(`SELECT record FROM sent_screenshots WHERE msg_id = ?`, msgID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var ss models.SentScreenshot
	if err := json.Unmarshal(rows[0].Record, &ss); err != nil {
		return nil, fmt.Errorf("decoding sent screenshot: %w", err)
	}
	return &ss, nil
}

// BlockStream adds a URL to a guild's blocked set until the given epoch.
func (s *Store) BlockStream(guildID uint64, unblockEpoch int64, url string) error {
	return s.db.Exec(
		`INSERT INTO blocked_streams (guild_id, unblock_epoch, url) VALUES (?, ?, ?)`,
		guildID, unblockEpoch, url,
	).Error
}

// UnblockStream removes a URL from a guild's blocked set.
func (s *Store) UnblockStream(guildID uint64, url string) error {
	return s.db.Exec(
		`DELETE FROM blocked_streams WHERE guild_id = ? AND url = ?`, guildID, url,
	).Error
}

// BlockedStreams returns a guild's blocked set.
func (s *Store) BlockedStreams(guildID uint64) ([]BlockedStream, error) {
	var rows []struct {
		UnblockEpoch int64
		URL          string
	}
	err := s.db.Raw(
		`SELECT unblock_epoch, url FROM blocked_streams WHERE guild_id = ?`, guildID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]BlockedStream, 0, len(rows))
	for _, r := range rows {
		out = append(out, BlockedStream{UnblockEpoch: r.UnblockEpoch, URL: r.URL})
	}
	return out, nil
}

// SetLinkPerm stores whether a guild may receive clip links.
func (s *Store) SetLinkPerm(guildID uint64, allowed bool) error {
	value := "false"
	if allowed {
		value = "true"
	}
	return s.db.Exec(
		`INSERT INTO link_perms (guild_id, allowed) VALUES (?, ?)`, guildID, value,
	).Error
}

// LinkPerm returns a guild's link permission; found is false when the guild
// has no explicit setting.
func (s *Store) LinkPerm(guildID uint64) (allowed, found bool, err error) {
	var rows []struct{ Allowed string }
	err = s.db.Raw(`SELECT allowed FROM link_perms WHERE guild_id = ?`, guildID).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return false, false, err
	}
	return rows[0].Allowed == "true", true, nil
}

// SetRedirect maps an alias to a target path.
func (s *Store) SetRedirect(alias, target string) error {
	return s.db.Exec(`INSERT INTO redirects (alias, target) VALUES (?, ?)`, alias, target).Error
}

// Redirect resolves an alias to its target path, or ErrNotFound.
func (s *Store) Redirect(alias string) (string, error) {
	var rows []struct{ Target string }
	if err := s.db.Raw(`SELECT target FROM redirects WHERE alias = ?`, alias).Scan(&rows).Error; err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	return rows[0].Target, nil
}

// AliasOf returns the existing alias for a target path, or ErrNotFound, so
// repeated link requests reuse one alias.
func (s *Store) AliasOf(target string) (string, error) {
	var rows []struct{ Alias string }
	if err := s.db.Raw(`SELECT alias FROM redirects WHERE target = ?`, target).Scan(&rows).Error; err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	return rows[0].Alias, nil
}
