package callgateway

import (
	"context"

	"ventline/internal/voice"
)

// VoiceCredential mints a media credential for a participant of a live call.
func (c *Coordinator) VoiceCredential(ctx context.Context, minter voice.Minter, callID, sessionID string) (voice.Credential, error) {
	if minter == nil {
		return voice.Credential{}, voice.ErrNotConfigured
	}
	if sessionID == "" {
		return voice.Credential{}, ErrInvalidSession
	}
	if !c.IsParticipant(callID, sessionID) {
		return voice.Credential{}, ErrNotParticipant
	}
	return minter.Mint(ctx, voice.ChannelForCall(callID), sessionID, voice.RolePublisher)
}
