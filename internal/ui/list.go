package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/rewind/internal/models"
)

var (
	_ list.Item = userItem{}
	_ list.Item = trackCountItem{}
)

// userItem wraps [models.User] to implement [list.Item].
type userItem struct {
	user models.User
}

func (i userItem) FilterValue() string { return i.user.SpotifyUserID }
func (i userItem) Title() string {
	if i.user.DisplayName != "" {
		return i.user.DisplayName
	}
	return i.user.SpotifyUserID
}
func (i userItem) Description() string {
	desc := i.user.SpotifyUserID
	if i.user.Email != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.user.Email)
	}
	return desc
}

// trackCountItem wraps [models.TrackCount] to implement [list.Item].
type trackCountItem struct {
	rank  int
	count models.TrackCount
}

func (i trackCountItem) FilterValue() string { return i.count.Name }
func (i trackCountItem) Title() string {
	return fmt.Sprintf("%d. %s", i.rank, i.count.Name)
}
func (i trackCountItem) Description() string {
	return fmt.Sprintf("%s • %d plays", i.count.ArtistName, i.count.Count)
}
