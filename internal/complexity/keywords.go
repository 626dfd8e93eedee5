// Package complexity routes an incoming request to a direct answer or to
// decomposition using lexical heuristics.
package complexity

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Keywords is the single source of truth for classification keywords.
// Matching is case-insensitive substring membership.
type Keywords struct {
	// Simple keywords indicate questions answerable in one reply.
	Simple []string `yaml:"simple"`

	// Complex keywords indicate work that needs a plan of several steps.
	Complex []string `yaml:"complex"`

	// Connectives mark a request that already chains several actions.
	// English connectives carry surrounding spaces so they only match as
	// separate words.
	Connectives []string `yaml:"connectives"`
}

// DefaultKeywords returns the built-in keyword sets.
var DefaultKeywords = Keywords{
	Simple: []string{
		"什么是", "如何", "为什么", "解释", "介绍", "定义",
		"简单", "快速", "直接", "基础", "概念",
		"what is", "how do", "how to", "why", "explain", "introduce",
		"define", "simple", "quick", "basic", "concept",
	},

	Complex: []string{
		"开发", "实现", "设计", "构建", "创建", "部署", "优化",
		"系统", "架构", "集成", "自动化", "多步骤", "复杂",
		"项目", "流程", "策略", "计划", "方案",
		"develop", "implement", "design", "build", "create", "deploy",
		"optimize", "system", "architecture", "integrate", "automate",
		"multi-step", "complex", "project", "workflow", "strategy", "roadmap",
	},

	Connectives: []string{
		"然后", "接着", "同时", "另外", "并且", "以及",
		" then ", " also ", " meanwhile ", " after that ", " afterwards ",
	},
}

// keywordsFile is the on-disk structure of a keyword override file.
type keywordsFile struct {
	// Replace discards the built-in sets instead of extending them.
	Replace  bool     `yaml:"replace"`
	Keywords Keywords `yaml:"keywords"`
}

// LoadKeywords reads keyword sets from a YAML file. Unless the file sets
// replace: true, its entries extend DefaultKeywords.
func LoadKeywords(path string) (Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords file: %w", err)
	}

	var file keywordsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Keywords{}, fmt.Errorf("parse keywords file %s: %w", path, err)
	}

	if file.Replace {
		return file.Keywords.clone(), nil
	}

	merged := DefaultKeywords.clone()
	merged.Simple = append(merged.Simple, file.Keywords.Simple...)
	merged.Complex = append(merged.Complex, file.Keywords.Complex...)
	merged.Connectives = append(merged.Connectives, file.Keywords.Connectives...)
	return merged, nil
}

func (k Keywords) clone() Keywords {
	return Keywords{
		Simple:      append([]string{}, k.Simple...),
		Complex:     append([]string{}, k.Complex...),
		Connectives: append([]string{}, k.Connectives...),
	}
}
