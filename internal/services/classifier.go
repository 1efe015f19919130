package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// TextGenerator is the chat-completion side of the language model client.
type TextGenerator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type ClassifyInput struct {
	Title        string   `json:"title" binding:"required"`
	Author       string   `json:"author"`
	ISBN         string   `json:"isbn"`
	Description  string   `json:"description"`
	Hashtags     []string `json:"hashtags"`
	CategoryHint string   `json:"category_hint,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (catalog.Classification, error)
}

const classifierSystemPrompt = "You are a helpful book-category-classifier."

var errUnparseableClassification = errors.New("reply is not in 'main - sub1, sub2' form")

type categoryClassifier struct {
	log      *logger.Logger
	gen      TextGenerator
	taxonomy catalog.Taxonomy
	known    map[string]struct{}
	metrics  *observability.Metrics
}

func NewCategoryClassifier(baseLog *logger.Logger, gen TextGenerator, tax catalog.Taxonomy, metrics *observability.Metrics) Classifier {
	known := make(map[string]struct{}, len(tax))
	for _, m := range tax {
		known[m.Name] = struct{}{}
	}
	return &categoryClassifier{
		log:      baseLog.With("service", "CategoryClassifier"),
		gen:      gen,
		taxonomy: tax,
		known:    known,
		metrics:  metrics,
	}
}

func (c *categoryClassifier) Classify(ctx context.Context, in ClassifyInput) (catalog.Classification, error) {
	start := time.Now()
	reply, err := c.gen.GenerateText(ctx, classifierSystemPrompt, BuildClassifierPrompt(c.taxonomy, in))
	c.metrics.ObserveExternalCall("classifier", "classify", err)
	if err != nil {
		return catalog.Classification{SubCategories: []string{}}, external("classifier", "classify", err)
	}
	out, err := ParseClassification(reply)
	if err != nil {
		c.log.Warn("Classifier reply unparseable", "isbn", in.ISBN, "reply", reply)
		return catalog.Classification{SubCategories: []string{}}, external("classifier", "parse", err)
	}
	if _, ok := c.known[out.MainCategory]; !ok {
		c.log.Warn("Classifier returned a main category outside the taxonomy", "isbn", in.ISBN, "main_category", out.MainCategory)
	}
	c.log.Debug("Classified", "isbn", in.ISBN, "main_category", out.MainCategory, "sub_categories", out.SubCategories, "took", time.Since(start))
	return out, nil
}

// BuildClassifierPrompt renders the taxonomy and the book into the prompt
// that asks for a 'main - sub1, sub2' reply.
func BuildClassifierPrompt(tax catalog.Taxonomy, in ClassifyInput) string {
	var b strings.Builder
	b.WriteString("웹사이트에서 이 책의 정보를 검색해서 카테고리를 분류해줘.\n")
	fmt.Fprintf(&b, "분류될 수 있는 카테고리의 대분류는 다음과 같아: %s.\n", strings.Join(tax.MainNames(), ", "))
	b.WriteString("각 대분류에 따른 소분류는 다음과 같아:\n")
	for _, m := range tax {
		fmt.Fprintf(&b, "%s - %s\n", m.Name, strings.Join(m.Subs, ", "))
	}
	b.WriteString("카테고리의 대분류는 하나만 가질 수 있고, 소분류는 여러 개 가질 수 있어.\n")
	b.WriteString("형식은 '대분류 - 소분류1, 소분류2, 소분류3'으로 해줘.\n\n")
	b.WriteString("책 정보:\n")
	fmt.Fprintf(&b, "- 제목: %s\n", in.Title)
	fmt.Fprintf(&b, "- 저자: %s\n", in.Author)
	fmt.Fprintf(&b, "- ISBN: %s\n", in.ISBN)
	fmt.Fprintf(&b, "- 설명: %s\n", in.Description)
	fmt.Fprintf(&b, "- 해시태그: %s\n", strings.Join(in.Hashtags, ", "))
	if hint := strings.TrimSpace(in.CategoryHint); hint != "" {
		fmt.Fprintf(&b, "- 서점 분류: %s\n", hint)
	}
	return b.String()
}

// ParseClassification reads a 'main - sub1, sub2' reply. The first line with
// the separator wins; surrounding quotes and blank sub-categories are dropped.
func ParseClassification(reply string) (catalog.Classification, error) {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "'\"`")
		mainCat, rest, ok := strings.Cut(line, " - ")
		if !ok {
			continue
		}
		mainCat = strings.TrimSpace(mainCat)
		if mainCat == "" {
			continue
		}
		subs := []string{}
		for _, s := range strings.Split(rest, ",") {
			s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
			if s != "" {
				subs = append(subs, s)
			}
		}
		return catalog.Classification{MainCategory: mainCat, SubCategories: subs}, nil
	}
	return catalog.Classification{SubCategories: []string{}}, errUnparseableClassification
}
