// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrPolicyViolation is returned when code matches a forbidden pattern.
var ErrPolicyViolation = errors.New("code rejected by security policy")

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

// SecurityPolicy screens code for forbidden patterns before it is executed.
//
// Screening is a coarse first line. The executors still apply resource limits and, for
// containers, network and capability isolation.
type SecurityPolicy struct {
	common []rule
	rules  map[string][]rule
}

// NewSecurityPolicy returns an empty policy.
func NewSecurityPolicy() *SecurityPolicy {
	return &SecurityPolicy{rules: make(map[string][]rule)}
}

// Forbid adds a pattern for language, or for every language when language is empty.
func (p *SecurityPolicy) Forbid(language, pattern, reason string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
	}
	r := rule{pattern: re, reason: reason}
	if language == "" {
		p.common = append(p.common, r)
		return nil
	}
	lang, err := NormalizeLanguage(language)
	if err != nil {
		return err
	}
	p.rules[lang] = append(p.rules[lang], r)
	return nil
}

func (p *SecurityPolicy) mustForbid(language, pattern, reason string) {
	if err := p.Forbid(language, pattern, reason); err != nil {
		panic(err)
	}
}

// DefaultPolicy forbids destructive shell commands, process spawning and raw device access.
func DefaultPolicy() *SecurityPolicy {
	p := NewSecurityPolicy()
	p.mustForbid("", `rm\s+-(?:[a-zA-Z]*r[a-zA-Z]*f|[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\s+/(?:\s|$|\*)`, "recursive delete of the root filesystem")
	p.mustForbid("", `:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, "fork bomb")
	p.mustForbid("", `\bmkfs(?:\.\w+)?\b`, "filesystem formatting")
	p.mustForbid("", `\bdd\s+[^\n]*of=/dev/`, "raw device write")

	p.mustForbid("python", `\bos\.(?:system|popen|fork|exec[lv]p?e?)\s*\(`, "process spawning")
	p.mustForbid("python", `\bsubprocess\b`, "process spawning")
	p.mustForbid("python", `\bshutil\.rmtree\s*\(\s*['"]/['"]`, "recursive delete of the root filesystem")
	p.mustForbid("python", `__import__\s*\(\s*['"](?:os|subprocess)['"]\s*\)`, "dynamic import of process modules")

	p.mustForbid("javascript", `require\s*\(\s*['"](?:node:)?child_process['"]\s*\)`, "process spawning")
	p.mustForbid("javascript", `from\s+['"](?:node:)?child_process['"]`, "process spawning")

	p.mustForbid("bash", `\b(?:shutdown|reboot|halt|poweroff)\b`, "host power control")
	p.mustForbid("bash", `\b(?:curl|wget)\b[^\n|]*\|\s*(?:ba|z)?sh\b`, "piping downloads into a shell")
	return p
}

// Check returns an error wrapping [ErrPolicyViolation] when code matches a forbidden pattern.
func (p *SecurityPolicy) Check(language, code string) error {
	if p == nil {
		return nil
	}
	lang, err := NormalizeLanguage(language)
	if err != nil {
		return err
	}
	for _, rules := range [][]rule{p.common, p.rules[lang]} {
		for _, r := range rules {
			if loc := r.pattern.FindStringIndex(code); loc != nil {
				return fmt.Errorf("%w: %s (%q)", ErrPolicyViolation, r.reason, code[loc[0]:loc[1]])
			}
		}
	}
	return nil
}
