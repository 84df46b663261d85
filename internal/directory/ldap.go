// internal/directory/ldap.go
package directory

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// LDAPConfig points at the directory server. BindDN/BindPass may be empty
// for anonymous binds.
type LDAPConfig struct {
	URL      string
	BindDN   string
	BindPass string
	BaseDN   string
}

// LDAP resolves names through an LDAP/AD server. Connections are opened
// per query; the Cached wrapper in front of it absorbs the cost.
type LDAP struct {
	cfg LDAPConfig
}

// NewLDAP builds an LDAP lookup. Pair it with NewCached.
func NewLDAP(cfg LDAPConfig) *LDAP {
	return &LDAP{cfg: cfg}
}

func (l *LDAP) connect() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial ldap: %w", err)
	}
	if l.cfg.BindDN != "" {
		if err := conn.Bind(l.cfg.BindDN, l.cfg.BindPass); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind: %w", err)
		}
	}
	return conn, nil
}

func (l *LDAP) DisplayName(username string) string {
	if username == "" {
		return username
	}
	conn, err := l.connect()
	if err != nil {
		return username
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 5, false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		[]string{"displayName"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil || len(res.Entries) == 0 {
		return username
	}
	if dn := res.Entries[0].GetAttributeValue("displayName"); dn != "" {
		return dn
	}
	return username
}

func (l *LDAP) SearchUsernames(q string) []string {
	if q == "" {
		return nil
	}
	conn, err := l.connect()
	if err != nil {
		return nil
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 200, 10, false,
		fmt.Sprintf("(displayName=*%s*)", ldap.EscapeFilter(q)),
		[]string{"sAMAccountName"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil
	}
	var users []string
	for _, e := range res.Entries {
		if u := e.GetAttributeValue("sAMAccountName"); u != "" {
			users = append(users, u)
		}
	}
	return users
}
