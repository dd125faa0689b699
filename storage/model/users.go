package model

// Role is the role of a user
type Role string

// Roles
const (
	RoleAdmin      Role = "admin"
	RoleAuthorized Role = "authorized"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAuthorized
}

// User is a user account.
// CreatedAt is a unix nano timestamp and defines the listing order.
type User struct {
	ID        string `gorm:"primaryKey;size:36" json:"id" msgpack:"id"`
	CreatedAt int64  `gorm:"autoCreateTime:false;index" json:"-" msgpack:"created_at"`

	// Login is the unique name used to log in
	Login string `gorm:"size:1000" json:"login" msgpack:"login"`
	// LoginHash is IndexHash(Login) and enforces the uniqueness of logins
	LoginHash string `gorm:"uniqueIndex;size:64" json:"-" msgpack:"-"`
	// PasswordHash stores a PHC-formatted argon2id hash of the user's password
	PasswordHash string `json:"-" msgpack:"password_hash"`
	Role         Role   `gorm:"size:16" json:"role" msgpack:"role"`
	// PrivateData is an opaque blob only the user's client can decrypt
	PrivateData []byte `json:"privateData,omitempty" msgpack:"private_data"`
	// LastPasswordUpdateTimestamp is a unix milli timestamp
	LastPasswordUpdateTimestamp *int64 `json:"lastPasswordUpdateTimestamp,omitempty" msgpack:"last_password_update"`
}

// UserPublic is the projection of a User visible to admins
type UserPublic struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Role  Role   `json:"role"`
}

// UserWithoutPassword is the projection of a User visible to the user itself
type UserWithoutPassword struct {
	UserPublic
	PrivateData                 []byte `json:"privateData,omitempty"`
	LastPasswordUpdateTimestamp *int64 `json:"lastPasswordUpdateTimestamp,omitempty"`
}

// Public returns the UserPublic projection
func (u User) Public() UserPublic {
	return UserPublic{
		ID:    u.ID,
		Login: u.Login,
		Role:  u.Role,
	}
}

// WithoutPassword returns the UserWithoutPassword projection
func (u User) WithoutPassword() UserWithoutPassword {
	var ts *int64
	if u.LastPasswordUpdateTimestamp != nil {
		v := *u.LastPasswordUpdateTimestamp
		ts = &v
	}
	return UserWithoutPassword{
		UserPublic:                  u.Public(),
		PrivateData:                 append([]byte(nil), u.PrivateData...),
		LastPasswordUpdateTimestamp: ts,
	}
}

// Fields of a UserPatch
const (
	UserFieldLogin       = "login"
	UserFieldPassword    = "password"
	UserFieldRole        = "role"
	UserFieldPrivateData = "privateData"
)

// UserPatch is a partial update of a User; only set fields are applied
type UserPatch struct {
	Login       Optional[string] `json:"login,omitzero"`
	Password    Optional[string] `json:"password,omitzero"`
	Role        Optional[Role]   `json:"role,omitzero"`
	PrivateData Optional[[]byte] `json:"privateData,omitzero"`
}

// Fields returns the names of the fields set in this patch
func (p UserPatch) Fields() []string {
	var fields []string
	if p.Login.IsSet() {
		fields = append(fields, UserFieldLogin)
	}
	if p.Password.IsSet() {
		fields = append(fields, UserFieldPassword)
	}
	if p.Role.IsSet() {
		fields = append(fields, UserFieldRole)
	}
	if p.PrivateData.IsSet() {
		fields = append(fields, UserFieldPrivateData)
	}
	return fields
}

// Credentials is the body used to log in and to create users
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}
