package registry

// Repositories bundles every repository behind a single construction point,
// mirroring the teacher's pkg/database/repositories.go aggregator.
type Repositories struct {
	PublicDirectories *PublicDirectoryRepository
	PdMembers         *PdMemberRepository
	Dids              *DidRepository
	PdDidMembers      *PdDidMemberRepository
	PublicKeys        *PublicKeyRepository
}

// NewRepositories constructs every repository against the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		PublicDirectories: NewPublicDirectoryRepository(client),
		PdMembers:         NewPdMemberRepository(client),
		Dids:              NewDidRepository(client),
		PdDidMembers:      NewPdDidMemberRepository(client),
		PublicKeys:        NewPublicKeyRepository(client),
	}
}
