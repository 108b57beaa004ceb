// Package rbac 基于角色的访问控制：角色编码 → 规则集
package rbac

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("角色已注册")
	ErrNotRegistered     = errors.New("角色未注册")
)

// AnonymousRoleCode 匿名用户使用的默认角色
const AnonymousRoleCode = "_default"

// Subject 权限判断的主体（当前用户）
type Subject struct {
	UserID   int64
	Roles    []string
	CityCode string
}

// IsAnonymous 未登录
func (s *Subject) IsAnonymous() bool { return s == nil || s.UserID == 0 }

// Rule 权限规则：obj 为被访问的对象，可为 nil
type Rule func(s *Subject, obj interface{}) bool

// Always 无条件允许
func Always(*Subject, interface{}) bool { return true }

// Role 角色及其权限规则集
type Role struct {
	Code        string
	Description string
	Priority    int // 数值越小越先判断
	Permissions map[string]Rule
}

// NewRole 创建角色
func NewRole(code, description string, priority int) *Role {
	return &Role{
		Code:        code,
		Description: description,
		Priority:    priority,
		Permissions: make(map[string]Rule),
	}
}

// Add 为角色添加权限规则，rule 为 nil 时无条件允许
func (r *Role) Add(perm string, rule Rule) *Role {
	if rule == nil {
		rule = Always
	}
	r.Permissions[perm] = rule
	return r
}

// HasPerm 角色是否对 obj 拥有 perm
func (r *Role) HasPerm(s *Subject, perm string, obj interface{}) bool {
	rule, ok := r.Permissions[perm]
	if !ok {
		return false
	}
	return rule(s, obj)
}

func (r *Role) String() string {
	return fmt.Sprintf("%s (%s)", r.Code, r.Description)
}

// Registry 角色注册表，不支持角色继承
type Registry struct {
	mu    sync.RWMutex
	roles map[string]*Role
}

// NewRegistry 创建注册表并注册匿名角色
func NewRegistry() *Registry {
	reg := &Registry{roles: make(map[string]*Role)}
	_ = reg.Register(NewRole(AnonymousRoleCode, "Anonymous Role", 1000))
	return reg
}

// Register 注册角色，编码重复时返回 ErrAlreadyRegistered
func (reg *Registry) Register(role *Role) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if existing, ok := reg.roles[role.Code]; ok {
		return fmt.Errorf("无法注册 %s，%s 使用了相同编码: %w", role, existing, ErrAlreadyRegistered)
	}
	reg.roles[role.Code] = role
	return nil
}

// Unregister 注销角色，未注册时返回 ErrNotRegistered
func (reg *Registry) Unregister(code string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.roles[code]; !ok {
		return fmt.Errorf("角色 %s: %w", code, ErrNotRegistered)
	}
	delete(reg.roles, code)
	return nil
}

// Get 按编码取角色
func (reg *Registry) Get(code string) (*Role, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	role, ok := reg.roles[code]
	if !ok {
		return nil, fmt.Errorf("角色 %s: %w", code, ErrNotRegistered)
	}
	return role, nil
}

// Contains 是否已注册
func (reg *Registry) Contains(code string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.roles[code]
	return ok
}

// Len 已注册角色数（含匿名角色）
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.roles)
}

// Items 按优先级排序的全部角色
func (reg *Registry) Items() []*Role {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	items := make([]*Role, 0, len(reg.roles))
	for _, r := range reg.roles {
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].Code < items[j].Code
	})
	return items
}

// AnonymousRole 匿名角色
func (reg *Registry) AnonymousRole() *Role {
	role, _ := reg.Get(AnonymousRoleCode)
	return role
}

// HasPerm 按优先级依次检查主体的角色，任一角色允许即通过
// 未登录或没有任何已注册角色的主体按匿名角色判断
func (reg *Registry) HasPerm(s *Subject, perm string, obj interface{}) bool {
	var roles []*Role
	if !s.IsAnonymous() {
		for _, code := range s.Roles {
			if role, err := reg.Get(code); err == nil {
				roles = append(roles, role)
			}
		}
	}
	if len(roles) == 0 {
		if anon := reg.AnonymousRole(); anon != nil {
			roles = append(roles, anon)
		}
	}
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Priority < roles[j].Priority })

	for _, role := range roles {
		if role.HasPerm(s, perm, obj) {
			return true
		}
	}
	return false
}
