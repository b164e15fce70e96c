package model

import (
	"math"
	"sort"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
	"gonum.org/v1/gonum/mat"

	// standard = unicode 分词 -> to_lower -> stop_en
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/rushteam/tabrec/core"
)

const standardAnalyzerName = "standard"

// Analyzer 把一段文本切分为词项。
type Analyzer interface {
	Terms(text string) []string
}

// bleveAnalyzer 用 bleve 的分析链做分词。
type bleveAnalyzer struct {
	a analysis.Analyzer
}

// NewStandardAnalyzer 返回英文分析器：Unicode 分词、小写化、英文停用词过滤。
// 单字符词项会被保留（例如类型标签 "x"）。
func NewStandardAnalyzer() (Analyzer, error) {
	cache := registry.NewCache()
	a, err := cache.AnalyzerNamed(standardAnalyzerName)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInternalError, "load text analyzer", err)
	}
	return &bleveAnalyzer{a: a}, nil
}

func (b *bleveAnalyzer) Terms(text string) []string {
	if text == "" {
		return nil
	}
	tokens := b.a.Analyze([]byte(text))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok.Term) == 0 {
			continue
		}
		out = append(out, string(tok.Term))
	}
	return out
}

// TFIDF 是拟合后的词表与逆文档频率。
//
//	tf     = 词项在文档中的原始计数
//	idf(t) = ln((1 + N) / (1 + df(t))) + 1
//	row    = L2 归一化 (tf * idf)
type TFIDF struct {
	Vocabulary []string
	IDF        []float64

	index map[string]int
}

// FitTransform 在 docs 上拟合词表并返回 L2 归一化后的文档-词项矩阵（行=文档）。
// 词表按字典序排列；所有文档都没有有效词项时返回 CONFIGURATION 错误。
func FitTransform(docs []string, analyzer Analyzer) (*TFIDF, *mat.Dense, error) {
	terms := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		terms[i] = analyzer.Terms(d)
		seen := make(map[string]struct{}, len(terms[i]))
		for _, t := range terms[i] {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if len(df) == 0 {
		return nil, nil, core.Configurationf(core.ModuleModel,
			"empty vocabulary: feature columns contain only stop words or blanks")
	}

	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)

	v := &TFIDF{
		Vocabulary: vocab,
		IDF:        make([]float64, len(vocab)),
		index:      make(map[string]int, len(vocab)),
	}
	n := float64(len(docs))
	for j, t := range vocab {
		v.index[t] = j
		v.IDF[j] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	x := mat.NewDense(len(docs), len(vocab), nil)
	for i, ts := range terms {
		for _, t := range ts {
			j := v.index[t]
			x.Set(i, j, x.At(i, j)+1)
		}
		row := x.RawRowView(i)
		var norm float64
		for j := range row {
			row[j] *= v.IDF[j]
			norm += row[j] * row[j]
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for j := range row {
			row[j] /= norm
		}
	}
	return v, x, nil
}
