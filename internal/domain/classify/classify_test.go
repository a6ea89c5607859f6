package classify_test

import (
	"testing"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/classify"
	"github.com/stretchr/testify/assert"
)

func TestClassify_AnnotationBeatsNamespace(t *testing.T) {
	u := domain.SourceUnit{
		Path:        "src/main/java/com/acme/shop/service/LegacyStatusController.java",
		Namespace:   "com.acme.shop.service",
		TypeName:    "LegacyStatusController",
		Annotations: []string{"RestController", "RequestMapping"},
	}
	layer, m := classify.Classify(u)
	assert.Equal(t, domain.LayerController, layer)
	assert.Equal(t, classify.RuleAnnotation, m.Rule)
	assert.Equal(t, "RestController", m.Token)
}

func TestClassify_AnnotationOrder(t *testing.T) {
	u := domain.SourceUnit{Namespace: "com.acme.client", TypeName: "InventoryClient", Annotations: []string{"Service", "FeignClient"}}
	layer, _ := classify.Classify(u)
	assert.Equal(t, domain.LayerExternalClient, layer)
}

func TestClassify_QualifiedAnnotation(t *testing.T) {
	u := domain.SourceUnit{TypeName: "Billing", Annotations: []string{"org.apache.ibatis.annotations.Mapper"}}
	layer, m := classify.Classify(u)
	assert.Equal(t, domain.LayerDataAccess, layer)
	assert.Equal(t, "Mapper", m.Token)
}

func TestClassify_GoDirective(t *testing.T) {
	u := domain.SourceUnit{
		Namespace:   "example.com/shop/internal/order",
		TypeName:    "Pricing",
		Annotations: []string{"layerforge:domain_service"},
	}
	layer, m := classify.Classify(u)
	assert.Equal(t, domain.LayerDomainService, layer)
	assert.Equal(t, classify.RuleAnnotation, m.Rule)
}

func TestClassify_Namespace(t *testing.T) {
	tests := []struct {
		ns   string
		want domain.Layer
	}{
		{"com.acme.shop.interfaces.rest", domain.LayerController},
		{"com.acme.shop.application.service", domain.LayerApplicationService},
		{"com.acme.shop.domain.service", domain.LayerDomainService},
		{"com.acme.shop.core.service", domain.LayerDomainService},
		{"com.acme.shop.infrastructure.mapper", domain.LayerDataAccess},
		{"com.acme.shop.domain.entity", domain.LayerEntity},
		{"com.acme.shop.interfaces.dto", domain.LayerDTO},
		{"com.acme.shop.infrastructure.feign", domain.LayerExternalClient},
		{"example.com/shop/internal/adapters/http", domain.LayerController},
	}
	for _, tt := range tests {
		t.Run(tt.ns, func(t *testing.T) {
			layer, m := classify.Classify(domain.SourceUnit{Namespace: tt.ns, TypeName: "Thing"})
			assert.Equal(t, tt.want, layer)
			assert.Equal(t, classify.RuleNamespace, m.Rule)
		})
	}
}

func TestClassify_PathWhenNamespaceSilent(t *testing.T) {
	u := domain.SourceUnit{
		Path:      "src/main/java/com/acme/shop/dao/Orders.java",
		Namespace: "com.acme.shop",
		TypeName:  "Orders",
	}
	layer, m := classify.Classify(u)
	assert.Equal(t, domain.LayerDataAccess, layer)
	assert.Equal(t, classify.RulePath, m.Rule)
	assert.Equal(t, "dao", m.Token)
}

func TestClassify_Suffix(t *testing.T) {
	tests := []struct {
		name string
		want domain.Layer
	}{
		{"RefundController", domain.LayerController},
		{"RefundServiceImpl", domain.LayerApplicationService},
		{"RefundMapper", domain.LayerDataAccess},
		{"RefundDAO", domain.LayerDataAccess},
		{"RefundEntity", domain.LayerEntity},
		{"RefundRequest", domain.LayerDTO},
		{"RefundVO", domain.LayerDTO},
		{"PaymentClient", domain.LayerExternalClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer, m := classify.Classify(domain.SourceUnit{Path: "src/X.java", Namespace: "com.acme", TypeName: tt.name})
			assert.Equal(t, tt.want, layer)
			assert.Equal(t, classify.RuleSuffix, m.Rule)
		})
	}
}

func TestClassify_Unknown(t *testing.T) {
	u := domain.SourceUnit{Path: "src/main/java/com/acme/util/StringUtils.java", Namespace: "com.acme.util", TypeName: "StringUtils"}
	layer, m := classify.Classify(u)
	assert.Equal(t, domain.LayerUnknown, layer)
	assert.Empty(t, m.Rule)
}

func TestServiceLayer(t *testing.T) {
	assert.Equal(t, domain.LayerDomainService, classify.ServiceLayer("com.acme.domain.pricing"))
	assert.Equal(t, domain.LayerDomainService, classify.ServiceLayer("example.com/shop/internal/core"))
	assert.Equal(t, domain.LayerApplicationService, classify.ServiceLayer("com.acme.app.service"))
	assert.Equal(t, domain.LayerApplicationService, classify.ServiceLayer(""))
}

func TestInferRootNamespace_MostFrequent(t *testing.T) {
	got := classify.InferRootNamespace([]string{
		"org.other.lib",
		"com.acme.shop.rest",
		"com.acme.shop.service",
		"com.acme.shop",
		"com.acme",
	}, 3)
	assert.Equal(t, "com.acme.shop", got)
}

func TestInferRootNamespace_TieFirstOccurrence(t *testing.T) {
	got := classify.InferRootNamespace([]string{
		"org.beta.app.x",
		"com.alpha.app.y",
		"com.alpha.app.z",
		"org.beta.app.w",
	}, 3)
	assert.Equal(t, "org.beta.app", got)
}

func TestInferRootNamespace_Empty(t *testing.T) {
	assert.Equal(t, "", classify.InferRootNamespace(nil, 3))
	assert.Equal(t, "", classify.InferRootNamespace([]string{"a.b"}, 3))
}

func TestInferRootNamespace_GoImportPaths(t *testing.T) {
	got := classify.InferRootNamespace([]string{
		"example.com/acme/shop/internal/order",
		"example.com/acme/shop/internal/billing",
	}, 3)
	assert.Equal(t, "example.com/acme/shop", got)
}

func TestJoinNamespace(t *testing.T) {
	assert.Equal(t, "com.acme.dto", classify.JoinNamespace("com.acme", "dto"))
	assert.Equal(t, "example.com/shop/dto", classify.JoinNamespace("example.com/shop", "dto"))
	assert.Equal(t, "domain.service", classify.JoinNamespace("", "domain", "service"))
}
