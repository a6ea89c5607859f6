// Package classify assigns source units to architectural layers using an
// ordered rule table: annotation, namespace segment, path segment, type-name
// suffix. The first rule that matches decides.
package classify

import (
	"path"
	"strings"

	"github.com/fatih/camelcase"
	"github.com/layerforge/layerforge/internal/domain"
)

// role is the pre-split classification. Services are resolved into the
// application or domain layer afterwards.
type role string

const (
	roleNone           role = ""
	roleController     role = "controller"
	roleService        role = "service"
	roleDomainService  role = "domain_service"
	roleDataAccess     role = "data_access"
	roleEntity         role = "entity"
	roleDTO            role = "dto"
	roleExternalClient role = "external_client"
)

// Rule names reported in Match.
const (
	RuleAnnotation = "annotation"
	RuleNamespace  = "namespace"
	RulePath       = "path"
	RuleSuffix     = "suffix"
)

// Match explains which rule classified a unit and the token that triggered it.
type Match struct {
	Rule  string `json:"rule"`
	Token string `json:"token"`
}

// DirectivePrefix marks role directives in Go comments, e.g. //layerforge:controller.
const DirectivePrefix = "layerforge:"

// annotationRules is ordered: the first annotation found in this list wins, so a
// unit carrying both @FeignClient and @Service is an external client.
var annotationRules = []struct {
	name string
	role role
}{
	{"FeignClient", roleExternalClient},
	{"RestController", roleController},
	{"Controller", roleController},
	{"Service", roleService},
	{"Mapper", roleDataAccess},
	{"Repository", roleDataAccess},
	{"Entity", roleEntity},
	{"Table", roleEntity},
	{"TableName", roleEntity},
	{"Document", roleEntity},
}

var directiveRoles = map[string]role{
	"controller":          roleController,
	"service":             roleService,
	"application_service": roleService,
	"domain_service":      roleDomainService,
	"data_access":         roleDataAccess,
	"repository":          roleDataAccess,
	"mapper":              roleDataAccess,
	"entity":              roleEntity,
	"dto":                 roleDTO,
	"external_client":     roleExternalClient,
	"client":              roleExternalClient,
}

var segmentRoles = map[string]role{
	"controller": roleController, "controllers": roleController,
	"rest": roleController, "web": roleController,
	"handler": roleController, "handlers": roleController, "http": roleController,

	"feign": roleExternalClient, "client": roleExternalClient, "clients": roleExternalClient,
	"remote": roleExternalClient, "rpc": roleExternalClient, "integration": roleExternalClient,

	"mapper": roleDataAccess, "mappers": roleDataAccess, "dao": roleDataAccess,
	"repository": roleDataAccess, "repositories": roleDataAccess, "repo": roleDataAccess,
	"persistence": roleDataAccess,

	"dto": roleDTO, "dtos": roleDTO, "vo": roleDTO, "request": roleDTO,
	"response": roleDTO, "req": roleDTO, "resp": roleDTO, "command": roleDTO,

	"entity": roleEntity, "entities": roleEntity, "model": roleEntity,
	"models": roleEntity, "po": roleEntity, "domain": roleEntity, "aggregate": roleEntity,

	"service": roleService, "services": roleService,
	"application": roleService, "usecase": roleService,
}

var suffixRoles = map[string]role{
	"Controller": roleController, "Resource": roleController, "Handler": roleController,
	"Service": roleService,
	"Mapper":  roleDataAccess, "Dao": roleDataAccess, "DAO": roleDataAccess,
	"Repository": roleDataAccess, "Repo": roleDataAccess,
	"Entity": roleEntity, "PO": roleEntity,
	"DTO": roleDTO, "Dto": roleDTO, "VO": roleDTO, "Vo": roleDTO,
	"Request": roleDTO, "Response": roleDTO, "Req": roleDTO, "Resp": roleDTO, "Command": roleDTO,
	"Client": roleExternalClient, "Feign": roleExternalClient,
}

// domainMarkers are namespace segments that put a service in the domain layer.
var domainMarkers = map[string]bool{"domain": true, "core": true}

// Classify returns the layer for u, or LayerUnknown when no rule matches.
func Classify(u domain.SourceUnit) (domain.Layer, Match) {
	r, m := classifyRole(u)
	return resolve(r, u), m
}

func classifyRole(u domain.SourceUnit) (role, Match) {
	if r, tok := byAnnotation(u.Annotations); r != roleNone {
		return r, Match{Rule: RuleAnnotation, Token: tok}
	}
	if r, tok := bySegments(namespaceSegments(u)); r != roleNone {
		return r, Match{Rule: RuleNamespace, Token: tok}
	}
	if r, tok := bySegments(pathSegments(u.Path)); r != roleNone {
		return r, Match{Rule: RulePath, Token: tok}
	}
	if r, tok := bySuffix(u.TypeName); r != roleNone {
		return r, Match{Rule: RuleSuffix, Token: tok}
	}
	return roleNone, Match{}
}

func resolve(r role, u domain.SourceUnit) domain.Layer {
	switch r {
	case roleController:
		return domain.LayerController
	case roleService:
		return ServiceLayer(u.Namespace)
	case roleDomainService:
		return domain.LayerDomainService
	case roleDataAccess:
		return domain.LayerDataAccess
	case roleEntity:
		return domain.LayerEntity
	case roleDTO:
		return domain.LayerDTO
	case roleExternalClient:
		return domain.LayerExternalClient
	}
	return domain.LayerUnknown
}

// ServiceLayer splits services: a namespace with a domain or core segment is a
// domain service, anything else an application service.
func ServiceLayer(namespace string) domain.Layer {
	for _, seg := range SplitNamespace(namespace) {
		if domainMarkers[strings.ToLower(seg)] {
			return domain.LayerDomainService
		}
	}
	return domain.LayerApplicationService
}

func byAnnotation(annotations []string) (role, string) {
	have := make(map[string]bool, len(annotations))
	for _, a := range annotations {
		a = strings.TrimPrefix(a, "@")
		if strings.HasPrefix(a, DirectivePrefix) {
			if r, ok := directiveRoles[strings.TrimPrefix(a, DirectivePrefix)]; ok {
				return r, a
			}
			continue
		}
		// Qualified names such as org.springframework.stereotype.Service.
		if i := strings.LastIndex(a, "."); i >= 0 {
			a = a[i+1:]
		}
		have[a] = true
	}
	for _, rule := range annotationRules {
		if have[rule.name] {
			return rule.role, rule.name
		}
	}
	return roleNone, ""
}

// bySegments scans from the deepest segment up so the most specific package
// name decides (shop.domain.service is a service, not an entity).
func bySegments(segs []string) (role, string) {
	for i := len(segs) - 1; i >= 0; i-- {
		if r, ok := segmentRoles[strings.ToLower(segs[i])]; ok {
			return r, segs[i]
		}
	}
	return roleNone, ""
}

func bySuffix(typeName string) (role, string) {
	if typeName == "" {
		return roleNone, ""
	}
	name := strings.TrimSuffix(typeName, "Impl")
	if name == "" {
		return roleNone, ""
	}
	words := camelcase.Split(name)
	last := words[len(words)-1]
	if r, ok := suffixRoles[last]; ok {
		return r, last
	}
	return roleNone, ""
}

func namespaceSegments(u domain.SourceUnit) []string {
	return SplitNamespace(u.Namespace)
}

func pathSegments(p string) []string {
	dir := path.Dir(strings.ReplaceAll(p, "\\", "/"))
	if dir == "." || dir == "/" {
		return nil
	}
	return strings.Split(dir, "/")
}

// SplitNamespace splits a dotted (Java) or slashed (Go import path) namespace.
func SplitNamespace(ns string) []string {
	if ns == "" {
		return nil
	}
	sep := "."
	if strings.Contains(ns, "/") {
		sep = "/"
	}
	var out []string
	for _, s := range strings.Split(ns, sep) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
