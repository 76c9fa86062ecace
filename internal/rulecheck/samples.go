package rulecheck

import "strings"

// categoryVocabulary backs the relevance heuristic: a rule's pattern or name
// should mention at least one keyword of its declared category.
var categoryVocabulary = map[string][]string{
	"input-validation":     {"input", "valid", "sanitiz", "parse", "req", "request", "param"},
	"output-encoding":      {"output", "encod", "escape", "html", "innerhtml", "write", "render"},
	"access-control":       {"auth", "access", "permission", "role", "privile", "acl"},
	"cryptography":         {"crypt", "hash", "md5", "sha", "random", "cipher", "key"},
	"error-handling":       {"error", "exception", "catch", "throw", "panic"},
	"logging":              {"log", "console", "audit", "trace"},
	"data-protection":      {"password", "secret", "token", "credential", "pii", "api", "key"},
	"session-management":   {"session", "cookie", "token", "httponly", "samesite", "secure"},
	"injection-prevention": {"inject", "eval", "exec", "sql", "query", "command", "spawn"},
	"configuration":        {"config", "cors", "debug", "header", "origin", "setting"},
}

// sampleFor builds a synthetic corpus representative of the category so the
// timed execution stage exercises realistic text, not a degenerate string.
func sampleFor(category string) string {
	body, ok := categorySamples[category]
	if !ok {
		body = genericSample
	}
	// Repeat to a few hundred lines so timing is meaningful.
	return strings.Repeat(body, 40)
}

const genericSample = `function handler(req, res) {
  const value = req.body.value;
  res.json({ ok: true, value });
}
const config = { retries: 3, timeout: 5000 };
`

var categorySamples = map[string]string{
	"input-validation": `app.post("/items", (req, res) => {
  const payload = JSON.parse(req.body.raw);
  const id = parseInt(req.query.id, 10);
  res.json(payload);
});
`,
	"output-encoding": `element.innerHTML = userContent;
document.write("<div>" + name + "</div>");
node.textContent = safeValue;
`,
	"access-control": `routes.push({ path: "/admin", auth: true, role: "admin" });
const guard = { requireAuth: true, permissions: ["read"] };
`,
	"cryptography": `const digest = createHash("sha256").update(data).digest("hex");
const nonce = crypto.randomBytes(16);
const weak = Math.random();
`,
	"error-handling": `try {
  run();
} catch (err) {
  logger.error("run failed", err);
}
`,
	"logging": `logger.info("user login", { userId });
console.log("request received");
audit.record({ action: "update" });
`,
	"data-protection": `const dbUrl = process.env.DATABASE_URL;
const apiKey = loadFromVault("service/api_key");
const masked = redact(payload);
`,
	"session-management": `res.cookie("sid", token, { httpOnly: true, secure: true, sameSite: "lax" });
session.maxAge = 3600;
`,
	"injection-prevention": `db.query("SELECT name FROM users WHERE id = $1", [id]);
const result = lookup(table, key);
`,
	"configuration": `app.use(cors({ origin: "https://example.com" }));
const settings = { debug: false, port: 8080 };
`,
}
