package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker validates that a Discord user may run capture commands.
// Real authorization lives in the host ERP's permission layer; this is
// transport-level hygiene only.
type PermissionChecker struct {
	captureRoleID string
}

// NewPermissionChecker creates a PermissionChecker gated on the given role ID.
func NewPermissionChecker(captureRoleID string) *PermissionChecker {
	return &PermissionChecker{captureRoleID: captureRoleID}
}

// CanCapture checks whether the interaction author holds the capture role.
// If no role is configured, all users are allowed. Interactions without a
// Member (direct messages) are always allowed: the DM channel is already
// scoped to the user.
func (p *PermissionChecker) CanCapture(i *discordgo.InteractionCreate) bool {
	if p.captureRoleID == "" {
		return true
	}
	if i.Member == nil {
		return true
	}
	return slices.Contains(i.Member.Roles, p.captureRoleID)
}
