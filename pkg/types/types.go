package types

// DependencyKind classifies a crate dependency.
type DependencyKind string

const (
	DependencyKindNormal DependencyKind = "normal"
	DependencyKindBuild  DependencyKind = "build"
	DependencyKindDev    DependencyKind = "dev"
)

// MetadataDependency is a dependency as it appears in a publish upload.
type MetadataDependency struct {
	Name               string         `json:"name"`
	VersionReq         string         `json:"version_req"`
	Features           []string       `json:"features"`
	Optional           bool           `json:"optional"`
	DefaultFeatures    bool           `json:"default_features"`
	Target             *string        `json:"target"`
	Kind               DependencyKind `json:"kind,omitempty"`
	Registry           *string        `json:"registry"`
	ExplicitNameInToml *string        `json:"explicit_name_in_toml"`
}

// Metadata is the full descriptor cargo sends on publish. It is stored
// verbatim next to the index record and never updated afterwards.
type Metadata struct {
	Name          string                       `json:"name"`
	Vers          string                       `json:"vers"`
	Deps          []MetadataDependency         `json:"deps"`
	Features      map[string][]string          `json:"features"`
	Authors       []string                     `json:"authors"`
	Description   *string                      `json:"description"`
	Documentation *string                      `json:"documentation"`
	Homepage      *string                      `json:"homepage"`
	Readme        *string                      `json:"readme"`
	ReadmeFile    *string                      `json:"readme_file"`
	Keywords      []string                     `json:"keywords"`
	Categories    []string                     `json:"categories"`
	License       *string                      `json:"license"`
	LicenseFile   *string                      `json:"license_file"`
	Repository    *string                      `json:"repository"`
	Badges        map[string]map[string]string `json:"badges"`
	Links         *string                      `json:"links"`
	Yanked        bool                         `json:"yanked"`
}

// Dependency is a dependency as it appears in an index line, described
// in the cargo registry-index reference.
type Dependency struct {
	Name            string         `json:"name"`
	Req             string         `json:"req"`
	Features        []string       `json:"features"`
	Optional        bool           `json:"optional"`
	DefaultFeatures bool           `json:"default_features"`
	Target          *string        `json:"target"`
	Kind            DependencyKind `json:"kind"`
	Registry        *string        `json:"registry"`
	Package         *string        `json:"package"`
}

// PackageInfo is the per-version index record served to cargo, one JSON
// object per line. Immutable after creation except for Yanked.
type PackageInfo struct {
	Name     string              `json:"name"`
	Vers     string              `json:"vers"`
	Deps     []Dependency        `json:"deps"`
	Cksum    string              `json:"cksum"`
	Features map[string][]string `json:"features"`
	Yanked   bool                `json:"yanked"`
	Links    *string             `json:"links"`
}

// PackageInfoFromMetadata flattens an upload descriptor into an index
// record. When a dependency is renamed in the manifest, the index entry
// carries the local alias in Name and the upstream name in Package.
func PackageInfoFromMetadata(m Metadata, checksum string) PackageInfo {
	deps := make([]Dependency, 0, len(m.Deps))
	for _, d := range m.Deps {
		deps = append(deps, dependencyFromMetadata(d))
	}

	return PackageInfo{
		Name:     m.Name,
		Vers:     m.Vers,
		Deps:     deps,
		Cksum:    checksum,
		Features: m.Features,
		Yanked:   m.Yanked,
		Links:    m.Links,
	}
}

func dependencyFromMetadata(d MetadataDependency) Dependency {
	name := d.Name
	var pkg *string
	if d.ExplicitNameInToml != nil {
		upstream := d.Name
		name = *d.ExplicitNameInToml
		pkg = &upstream
	}

	kind := d.Kind
	if kind == "" {
		kind = DependencyKindNormal
	}

	return Dependency{
		Name:            name,
		Req:             d.VersionReq,
		Features:        d.Features,
		Optional:        d.Optional,
		DefaultFeatures: d.DefaultFeatures,
		Target:          d.Target,
		Kind:            kind,
		Registry:        d.Registry,
		Package:         pkg,
	}
}

// CrateSummary is the head pointer for a crate: its owners, the highest
// published version and the description that came with it. There is at
// most one per crate name.
type CrateSummary struct {
	Name        string   `json:"name"`
	Owners      []uint32 `json:"owners"`
	MaxVersion  string   `json:"max_version"`
	Description string   `json:"description"`
}

// IsOwner reports whether the given user id is in the owner set.
func (s *CrateSummary) IsOwner(userID uint32) bool {
	for _, id := range s.Owners {
		if id == userID {
			return true
		}
	}
	return false
}

// User is a registry user provisioned from an external identity.
type User struct {
	ID         uint32 `json:"id"`
	Login      string `json:"login"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// UserData is the profile an identity provider asserts for a login. It
// is compared against the stored User to detect drift.
type UserData struct {
	Login      string `json:"login"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Matches reports whether the stored user profile is in sync with the
// asserted claim.
func (d UserData) Matches(u User) bool {
	return d.Login == u.Login && d.GivenName == u.GivenName && d.FamilyName == u.FamilyName
}

// IntoUser builds a User with the allocated id.
func (d UserData) IntoUser(id uint32) User {
	return User{
		ID:         id,
		Login:      d.Login,
		GivenName:  d.GivenName,
		FamilyName: d.FamilyName,
	}
}

// Token is a stored bearer credential. The raw token value is never
// persisted; records are keyed by its hash.
type Token struct {
	TokenID string `json:"token_id"`
	Name    string `json:"name"`
	UserID  uint32 `json:"user_id"`
}

// AuthenticatedUser is the principal attached to a request after a
// successful credential lookup.
type AuthenticatedUser struct {
	ID uint32
}
