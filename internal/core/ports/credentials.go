package ports

import "context"

type voterTokenKey struct{}

// WithVoterToken attaches the voter's platform-issued bearer token to the
// context so outbound API adapters can forward it.
func WithVoterToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, voterTokenKey{}, token)
}

func VoterToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(voterTokenKey{}).(string)
	return token, ok && token != ""
}
