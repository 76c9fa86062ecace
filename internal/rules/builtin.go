package rules

// Builtin returns the rule set shipped with the engine. Every category from
// the closed set is covered by at least one rule. Patterns are RE2; none of
// them may match empty input.
func Builtin() []Spec {
	disabled := false
	return []Spec{
		{
			ID:             "no-eval",
			Name:           "Dynamic code evaluation via eval",
			Category:       "injection-prevention",
			Severity:       "critical",
			Pattern:        `\beval\s*\(`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx", "py"},
			Remediation:    "Remove eval; use explicit parsing or a safe dispatch table.",
			References:     []string{"https://cwe.mitre.org/data/definitions/95.html"},
			Tests: Tests{
				Positive: []TestCase{{Input: "eval(userInput)", Matches: 1}},
				Negative: []TestCase{{Input: "evaluateScore(input)"}},
			},
		},
		{
			ID:             "sql-string-concat",
			Name:           "SQL query built by string concatenation",
			Category:       "injection-prevention",
			Severity:       "high",
			Pattern:        `(?i)\b(query|execute)\s*\(\s*["'][^"']*["']\s*\+`,
			FileExtensions: []string{"js", "ts", "py", "php", "java"},
			Remediation:    "Use parameterized queries or a query builder.",
			References:     []string{"https://cwe.mitre.org/data/definitions/89.html"},
			Tests: Tests{
				Positive: []TestCase{{Input: `db.query("SELECT * FROM users WHERE id=" + id)`, Matches: 1}},
				Negative: []TestCase{{Input: `db.query("SELECT * FROM users WHERE id=$1", id)`}},
			},
		},
		{
			ID:             "child-process-exec",
			Name:           "Shell command execution with dynamic input",
			Category:       "injection-prevention",
			Severity:       "high",
			Pattern:        `\b(exec|execSync|spawn)\s*\(\s*[^"')]`,
			FileExtensions: []string{"js", "ts"},
			Remediation:    "Pass a fixed binary with an argument vector; never interpolate into a shell string.",
			References:     []string{"https://cwe.mitre.org/data/definitions/78.html"},
		},
		{
			ID:             "innerhtml-assignment",
			Name:           "Direct innerHTML assignment without encoding",
			Category:       "output-encoding",
			Severity:       "high",
			Pattern:        `\.innerHTML\s*=`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx"},
			Remediation:    "Encode output or use textContent / a sanitizer before inserting markup.",
			References:     []string{"https://cwe.mitre.org/data/definitions/79.html"},
		},
		{
			ID:             "document-write",
			Name:           "document.write output sink",
			Category:       "output-encoding",
			Severity:       "medium",
			Pattern:        `document\.write\s*\(`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx"},
			Remediation:    "Render through the DOM API with encoded values.",
		},
		{
			ID:             "hardcoded-password",
			Name:           "Hard-coded password literal",
			Category:       "data-protection",
			Severity:       "critical",
			Pattern:        `(?i)\b(password|passwd|pwd)\s*[:=]\s*["'][^"']{4,}["']`,
			FileExtensions: []string{"*"},
			Remediation:    "Move the secret to environment configuration or a secret store.",
			References:     []string{"https://cwe.mitre.org/data/definitions/798.html"},
			Tests: Tests{
				Positive: []TestCase{{Input: `password = "hunter22"`, Matches: 1}},
				Negative: []TestCase{{Input: `password = os.environ["DB_PASS"]`}},
			},
		},
		{
			ID:             "hardcoded-api-key",
			Name:           "Hard-coded API key or access token",
			Category:       "data-protection",
			Severity:       "high",
			Pattern:        `(?i)\b(api[_-]?key|secret[_-]?key|access[_-]?token)\s*[:=]\s*["'][A-Za-z0-9_\-]{8,}["']`,
			FileExtensions: []string{"*"},
			Remediation:    "Inject credentials at runtime; rotate the exposed key.",
		},
		{
			ID:             "weak-hash-algorithm",
			Name:           "Weak cryptographic hash (MD5/SHA1)",
			Category:       "cryptography",
			Severity:       "high",
			Pattern:        `(?i)\b(md5|sha1)\s*\(|createHash\s*\(\s*["'](md5|sha1)["']`,
			FileExtensions: []string{"js", "ts", "py", "php", "java", "go"},
			Remediation:    "Use SHA-256 or better; for passwords use bcrypt/argon2.",
			References:     []string{"https://cwe.mitre.org/data/definitions/328.html"},
		},
		{
			ID:             "math-random-secret",
			Name:           "Math.random used for token generation",
			Category:       "cryptography",
			Severity:       "medium",
			Pattern:        `Math\.random\s*\(\s*\)`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx"},
			Remediation:    "Use crypto.randomBytes / crypto.getRandomValues for anything security-relevant.",
		},
		{
			ID:             "sensitive-console-log",
			Name:           "Sensitive value written to console log",
			Category:       "logging",
			Severity:       "low",
			Pattern:        `(?i)console\.(log|debug|info)\s*\([^)]*(password|token|secret|apikey)`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx"},
			Remediation:    "Strip secrets before logging; log identifiers, not credentials.",
		},
		{
			ID:             "empty-catch-block",
			Name:           "Swallowed exception in empty catch",
			Category:       "error-handling",
			Severity:       "low",
			Pattern:        `catch\s*\([^)]*\)\s*\{\s*\}`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx", "java", "php"},
			Remediation:    "Handle or log the error; silent failure hides attacks and defects.",
		},
		{
			// Reserved for the synthetic violation the scanner emits when a
			// file's scan fails or times out. Disabled: it never matches
			// content, it only keeps the emitted rule id resolvable.
			ID:             "scan-error",
			Name:           "Scan execution error",
			Category:       "error-handling",
			Severity:       "high",
			Pattern:        `(?i)\bscan[ -]error\b`,
			FileExtensions: []string{"*"},
			Enabled:        &disabled,
			Remediation:    "Inspect the scanner log for the failure detail and rescan the file.",
		},
		{
			ID:             "permissive-cors",
			Name:           "Wildcard CORS origin configuration",
			Category:       "configuration",
			Severity:       "medium",
			Pattern:        `(?i)access-control-allow-origin["']?\s*[:,]\s*["']\*`,
			FileExtensions: []string{"js", "ts", "py", "go", "java", "yaml", "yml", "json"},
			Remediation:    "Allow an explicit origin list instead of *.",
		},
		{
			ID:             "auth-disabled",
			Name:           "Authentication or access check disabled",
			Category:       "access-control",
			Severity:       "high",
			Pattern:        `(?i)\b(auth|authentication|requireauth|access[_-]?check)\s*[:=]\s*(false|none|off)\b`,
			FileExtensions: []string{"*"},
			Remediation:    "Re-enable the access-control check or scope the exemption to a reviewed allowlist.",
		},
		{
			ID:             "insecure-cookie",
			Name:           "Session cookie without secure attributes",
			Category:       "session-management",
			Severity:       "high",
			Pattern:        `(?i)\b(httponly|secure|samesite)\s*[:=]\s*(false|["']?none["']?)`,
			FileExtensions: []string{"js", "ts", "py", "php", "java"},
			Remediation:    "Set HttpOnly and Secure on session cookies; use SameSite=Lax or stricter.",
		},
		{
			ID:             "unvalidated-request-parse",
			Name:           "Request payload parsed without input validation",
			Category:       "input-validation",
			Severity:       "medium",
			Pattern:        `(?i)JSON\.parse\s*\(\s*(req|request|ctx)\.`,
			FileExtensions: []string{"js", "jsx", "ts", "tsx"},
			Remediation:    "Validate the payload against a schema before parsing into domain objects.",
			References:     []string{"https://cwe.mitre.org/data/definitions/20.html"},
		},
	}
}

// LoadBuiltin admits the shipped rule set into a catalog.
func (c *Catalog) LoadBuiltin() (int, []error) {
	var errs []error
	admitted := 0
	for _, s := range Builtin() {
		if err := c.Admit(s.Rule()); err != nil {
			errs = append(errs, err)
			continue
		}
		admitted++
	}
	return admitted, errs
}
