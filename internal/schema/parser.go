package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reDollarTag   = regexp.MustCompile(`^\$(?:[A-Za-z_][A-Za-z0-9_]*)?\$`)
	reCreateType  = regexp.MustCompile(`(?is)^CREATE\s+TYPE\s+([\w."]+)\s+AS\s+ENUM\s*\(`)
	reAlterType   = regexp.MustCompile(`(?is)^ALTER\s+TYPE\s+([\w."]+)\s+ADD\s+VALUE\s+(?:IF\s+NOT\s+EXISTS\s+)?'((?:[^']|'')*)'(?:\s+(BEFORE|AFTER)\s+'((?:[^']|'')*)')?`)
	reCreateTable = regexp.MustCompile(`(?is)^CREATE\s+(?:(?:GLOBAL|LOCAL)\s+)?(?:(?:TEMP|TEMPORARY|UNLOGGED)\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w."]+)\s*\(`)
	reAlterTable  = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?(?:ONLY\s+)?([\w."]+)\s+(.*)$`)
	reAddAction   = regexp.MustCompile(`(?is)^ADD\s+(?:(COLUMN)\s+)?(?:IF\s+NOT\s+EXISTS\s+)?(.*)$`)
	reCreateIndex = regexp.MustCompile(`(?is)^CREATE\s+(UNIQUE\s+)?INDEX\s+(?:CONCURRENTLY\s+)?(?:(?:IF\s+NOT\s+EXISTS\s+)?([\w."]+)\s+)?ON\s+(?:ONLY\s+)?([\w."]+)\s*(?:USING\s+(\w+)\s*)?\(`)
	reCreatePol   = regexp.MustCompile(`(?is)^CREATE\s+POLICY\s+("(?:[^"]|"")+"|[\w.]+)\s+ON\s+([\w."]+)\s*(.*)$`)
	rePolAs       = regexp.MustCompile(`(?is)\bAS\s+(PERMISSIVE|RESTRICTIVE)\b`)
	rePolFor      = regexp.MustCompile(`(?is)\bFOR\s+(ALL|SELECT|INSERT|UPDATE|DELETE)\b`)
	rePolTo       = regexp.MustCompile(`(?is)\bTO\s+(.+)$`)
	rePolUsing    = regexp.MustCompile(`(?is)\bUSING\s*\(`)
	rePolCheck    = regexp.MustCompile(`(?is)\bWITH\s+CHECK\s*\(`)
	reTrigger     = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:CONSTRAINT\s+)?TRIGGER\s+([\w."]+)\s+(BEFORE|AFTER|INSTEAD\s+OF)\s+(.+?)\s+ON\s+([\w."]+)(?:.*?)EXECUTE\s+(?:FUNCTION|PROCEDURE)\s+([\w."]+)`)
	reOrSplit     = regexp.MustCompile(`(?i)\s+OR\s+`)
	reFunction    = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?FUNCTION\s+([\w."]+)\s*\(`)
	reFuncReturns = regexp.MustCompile(`(?is)\bRETURNS\s+(.+?)\s*(?:\bLANGUAGE\b|\bAS\b|\bSECURITY\b|\bSTABLE\b|\bIMMUTABLE\b|\bVOLATILE\b|\bSTRICT\b|\bPARALLEL\b|\bCOST\b|\bCALLED\b|\bSET\b|$)`)
	reFuncLang    = regexp.MustCompile(`(?is)\bLANGUAGE\s+'?(\w+)'?`)
	reFuncBody    = regexp.MustCompile(`(?is)\bAS\s+(\$(?:[A-Za-z_][A-Za-z0-9_]*)?\$|')`)
	rePKClause    = regexp.MustCompile(`(?is)^PRIMARY\s+KEY\s*\((.*?)\)`)
	reUniqueCl    = regexp.MustCompile(`(?is)^UNIQUE\s*(?:NULLS\s+(?:NOT\s+)?DISTINCT\s*)?\((.*?)\)`)
	reFKClause    = regexp.MustCompile(`(?is)^FOREIGN\s+KEY\s*\((.*?)\)\s*REFERENCES\s+([\w."]+)\s*(?:\((.*?)\))?(.*)$`)
	reOnDelete    = regexp.MustCompile(`(?is)\bON\s+DELETE\s+(CASCADE|RESTRICT|NO\s+ACTION|SET\s+NULL|SET\s+DEFAULT)`)
	reOnUpdate    = regexp.MustCompile(`(?is)\bON\s+UPDATE\s+(CASCADE|RESTRICT|NO\s+ACTION|SET\s+NULL|SET\s+DEFAULT)`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// ---------------------------------------------------------------------
// 1. Lexical helpers
// ---------------------------------------------------------------------

// skipQuoted returns the index just past a quoted region starting at i
// ('...', "...", $$...$$, $tag$...$tag$), or i when s[i] starts none.
func skipQuoted(s string, i int) int {
	switch s[i] {
	case '\'', '"':
		q := s[i]
		j := i + 1
		for j < len(s) {
			if s[j] == q {
				if j+1 < len(s) && s[j+1] == q {
					j += 2
					continue
				}
				return j + 1
			}
			j++
		}
		return len(s)
	case '$':
		tag := reDollarTag.FindString(s[i:])
		if tag == "" {
			return i
		}
		end := strings.Index(s[i+len(tag):], tag)
		if end < 0 {
			return len(s)
		}
		return i + len(tag) + end + len(tag)
	}
	return i
}

// stripComments removes -- and /* */ comments outside quoted regions.
func stripComments(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if j := skipQuoted(s, i); j > i {
			b.WriteString(s[i:j])
			i = j
			continue
		}
		if strings.HasPrefix(s[i:], "--") {
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				break
			}
			i += nl
			continue
		}
		if strings.HasPrefix(s[i:], "/*") {
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				break
			}
			b.WriteByte(' ')
			i += end + 4
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// splitStatements splits a script on semicolons outside quoted regions.
func splitStatements(s string) []string {
	var stmts []string
	start := 0
	for i := 0; i < len(s); {
		if j := skipQuoted(s, i); j > i {
			i = j
			continue
		}
		if s[i] == ';' {
			if stmt := strings.TrimSpace(s[start:i]); stmt != "" {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
		i++
	}
	if stmt := strings.TrimSpace(s[start:]); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

// findClosingParen returns the index of the ')' matching the '(' at open, or -1.
func findClosingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); {
		if j := skipQuoted(s, i); j > i {
			i = j
			continue
		}
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// SplitTopLevel splits s on sep, ignoring separators nested in parentheses or quotes.
// "id uuid, amount numeric(10,2), CHECK (a IN (1,2))" yields three clauses.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); {
		if j := skipQuoted(s, i); j > i {
			i = j
			continue
		}
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
		i++
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// fields splits on whitespace outside parentheses and quotes.
func fields(s string) []string {
	var out []string
	depth, start := 0, -1
	flush := func(end int) {
		if start >= 0 {
			out = append(out, s[start:end])
			start = -1
		}
	}
	for i := 0; i < len(s); {
		if j := skipQuoted(s, i); j > i {
			if start < 0 {
				start = i
			}
			i = j
			continue
		}
		c := s[i]
		switch {
		case c == '(':
			if start < 0 {
				start = i
			}
			depth++
		case c == ')':
			depth--
		case (c == ' ' || c == '\t' || c == '\n' || c == '\r') && depth == 0:
			flush(i)
			i++
			continue
		default:
			if start < 0 {
				start = i
			}
		}
		i++
	}
	flush(len(s))
	return out
}

// normalizeIdent strips quotes and the default "public." schema; unquoted parts fold to lower case.
func normalizeIdent(s string) string {
	parts := SplitTopLevel(strings.TrimSpace(s), '.')
	for i, p := range parts {
		if strings.HasPrefix(p, `"`) && strings.HasSuffix(p, `"`) && len(p) >= 2 {
			parts[i] = strings.ReplaceAll(p[1:len(p)-1], `""`, `"`)
		} else {
			parts[i] = strings.ToLower(p)
		}
	}
	if len(parts) == 2 && parts[0] == "public" {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

func identList(s string) []string {
	var out []string
	for _, p := range SplitTopLevel(s, ',') {
		out = append(out, normalizeIdent(p))
	}
	return out
}

func unquoteLiteral(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

func action(s string) string {
	return strings.ToUpper(collapse(s))
}

// ---------------------------------------------------------------------
// 2. Statement parsing
// ---------------------------------------------------------------------

// applyScript parses one migration script into the builder.
func (b *builder) applyScript(file, sql string) error {
	for _, stmt := range splitStatements(stripComments(sql)) {
		if err := b.applyStatement(stmt); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

func (b *builder) applyStatement(stmt string) error {
	switch {
	case reCreateType.MatchString(stmt):
		return b.parseCreateEnum(stmt)
	case reAlterType.MatchString(stmt):
		m := reAlterType.FindStringSubmatch(stmt)
		b.addEnumValue(normalizeIdent(m[1]), strings.ReplaceAll(m[2], "''", "'"), strings.ToUpper(m[3]), strings.ReplaceAll(m[4], "''", "'"))
	case reCreateTable.MatchString(stmt):
		return b.parseCreateTable(stmt)
	case reAlterTable.MatchString(stmt):
		b.parseAlterTable(stmt)
	case reCreateIndex.MatchString(stmt):
		return b.parseCreateIndex(stmt)
	case reCreatePol.MatchString(stmt):
		b.parseCreatePolicy(stmt)
	case reTrigger.MatchString(stmt):
		b.parseCreateTrigger(stmt)
	case reFunction.MatchString(stmt):
		return b.parseCreateFunction(stmt)
	}
	return nil
}

func (b *builder) parseCreateEnum(stmt string) error {
	loc := reCreateType.FindStringSubmatchIndex(stmt)
	name := normalizeIdent(stmt[loc[2]:loc[3]])
	open := loc[1] - 1
	end := findClosingParen(stmt, open)
	if end < 0 {
		return fmt.Errorf("unbalanced parentheses in CREATE TYPE %s", name)
	}
	enum := &EnumMetadata{Name: name}
	for _, v := range SplitTopLevel(stmt[open+1:end], ',') {
		enum.Values = append(enum.Values, unquoteLiteral(v))
	}
	b.mergeEnum(enum)
	return nil
}

func (b *builder) parseCreateTable(stmt string) error {
	loc := reCreateTable.FindStringSubmatchIndex(stmt)
	name := normalizeIdent(stmt[loc[2]:loc[3]])
	open := loc[1] - 1
	end := findClosingParen(stmt, open)
	if end < 0 {
		return fmt.Errorf("unbalanced parentheses in CREATE TABLE %s", name)
	}

	t := &TableMetadata{Name: name}
	for _, clause := range SplitTopLevel(stmt[open+1:end], ',') {
		if isConstraintClause(clause) {
			if c := parseConstraintClause(name, clause, len(t.Constraints)); c != nil {
				t.Constraints = appendConstraint(t.Constraints, c)
			}
			continue
		}
		if col, inline := parseColumnClause(name, clause); col != nil {
			t.Columns = append(t.Columns, col)
			for _, c := range inline {
				t.Constraints = appendConstraint(t.Constraints, c)
			}
		}
	}
	b.mergeTable(t)
	return nil
}

// parseAlterTable folds ADD COLUMN / ADD CONSTRAINT actions into the owning table.
func (b *builder) parseAlterTable(stmt string) {
	m := reAlterTable.FindStringSubmatch(stmt)
	table := normalizeIdent(m[1])
	for _, act := range SplitTopLevel(m[2], ',') {
		add := reAddAction.FindStringSubmatch(act)
		if add == nil {
			continue
		}
		clause := add[2]
		if add[1] == "" && isConstraintClause(clause) {
			b.onTable(table, func(t *TableMetadata) {
				if c := parseConstraintClause(t.Name, clause, len(t.Constraints)); c != nil {
					t.Constraints = appendConstraint(t.Constraints, c)
				}
			})
			continue
		}
		col, inline := parseColumnClause(table, clause)
		if col == nil {
			continue
		}
		b.onTable(table, func(t *TableMetadata) {
			mergeColumns(t, []*ColumnMetadata{col})
			for _, c := range inline {
				t.Constraints = appendConstraint(t.Constraints, c)
			}
		})
	}
}

func (b *builder) parseCreateIndex(stmt string) error {
	loc := reCreateIndex.FindStringSubmatchIndex(stmt)
	m := reCreateIndex.FindStringSubmatch(stmt)
	open := loc[1] - 1
	end := findClosingParen(stmt, open)
	if end < 0 {
		return fmt.Errorf("unbalanced parentheses in CREATE INDEX on %s", m[3])
	}

	idx := &IndexMetadata{
		Table:  normalizeIdent(m[3]),
		Unique: strings.TrimSpace(m[1]) != "",
		Method: strings.ToLower(m[4]),
	}
	for _, part := range SplitTopLevel(stmt[open+1:end], ',') {
		toks := fields(part)
		if len(toks) == 0 {
			continue
		}
		if strings.HasPrefix(toks[0], "(") || strings.Contains(toks[0], "(") {
			idx.Columns = append(idx.Columns, collapse(part))
			continue
		}
		idx.Columns = append(idx.Columns, normalizeIdent(toks[0]))
	}
	if m[2] != "" {
		idx.Name = normalizeIdent(m[2])
	} else {
		idx.Name = fmt.Sprintf("%s_%s_idx", idx.Table, strings.Join(idx.Columns, "_"))
	}

	b.onTable(idx.Table, func(t *TableMetadata) {
		for _, existing := range t.Indexes {
			if strings.EqualFold(existing.Name, idx.Name) {
				return
			}
		}
		t.Indexes = append(t.Indexes, idx)
	})
	return nil
}

func (b *builder) parseCreatePolicy(stmt string) {
	m := reCreatePol.FindStringSubmatch(stmt)
	p := &PolicyMetadata{
		Name:       normalizeIdent(m[1]),
		Table:      normalizeIdent(m[2]),
		Command:    "ALL",
		Permissive: true,
	}
	rest := m[3]

	head := rest
	if loc := rePolUsing.FindStringIndex(rest); loc != nil {
		head = rest[:loc[0]]
		if end := findClosingParen(rest, loc[1]-1); end > 0 {
			p.Using = collapse(rest[loc[1]:end])
		}
	}
	if loc := rePolCheck.FindStringIndex(rest); loc != nil {
		if loc[0] < len(head) {
			head = rest[:loc[0]]
		}
		if end := findClosingParen(rest, loc[1]-1); end > 0 {
			p.WithCheck = collapse(rest[loc[1]:end])
		}
	}
	if as := rePolAs.FindStringSubmatch(head); as != nil {
		p.Permissive = strings.EqualFold(as[1], "PERMISSIVE")
	}
	if f := rePolFor.FindStringSubmatch(head); f != nil {
		p.Command = strings.ToUpper(f[1])
	}
	if to := rePolTo.FindStringSubmatch(head); to != nil {
		for _, r := range SplitTopLevel(to[1], ',') {
			p.Roles = append(p.Roles, normalizeIdent(r))
		}
	}

	b.onTable(p.Table, func(t *TableMetadata) {
		for _, existing := range t.Policies {
			if strings.EqualFold(existing.Name, p.Name) {
				return
			}
		}
		t.Policies = append(t.Policies, p)
	})
}

func (b *builder) parseCreateTrigger(stmt string) {
	m := reTrigger.FindStringSubmatch(stmt)
	tr := &TriggerMetadata{
		Name:     normalizeIdent(m[1]),
		Timing:   action(m[2]),
		Table:    normalizeIdent(m[4]),
		Function: normalizeIdent(m[5]),
	}
	for _, ev := range reOrSplit.Split(m[3], -1) {
		if words := strings.Fields(ev); len(words) > 0 {
			tr.Events = append(tr.Events, strings.ToUpper(words[0]))
		}
	}

	b.onTable(tr.Table, func(t *TableMetadata) {
		for _, existing := range t.Triggers {
			if strings.EqualFold(existing.Name, tr.Name) {
				return
			}
		}
		t.Triggers = append(t.Triggers, tr)
	})
}

func (b *builder) parseCreateFunction(stmt string) error {
	loc := reFunction.FindStringSubmatchIndex(stmt)
	name := normalizeIdent(stmt[loc[2]:loc[3]])
	open := loc[1] - 1
	end := findClosingParen(stmt, open)
	if end < 0 {
		return fmt.Errorf("unbalanced parentheses in CREATE FUNCTION %s", name)
	}
	fn := &FunctionMetadata{Name: name, Arguments: collapse(stmt[open+1 : end])}

	rest := stmt[end+1:]
	header, trailer := rest, ""
	if b := reFuncBody.FindStringSubmatchIndex(rest); b != nil {
		bodyStart := b[3]
		stop := skipQuoted(rest, b[2])
		header = rest[:b[0]]
		if stop > bodyStart {
			delim := rest[b[2]:b[3]]
			fn.Body = strings.TrimSpace(strings.TrimSuffix(rest[bodyStart:stop], delim))
			trailer = rest[stop:]
		}
	}
	if r := reFuncReturns.FindStringSubmatch(header); r != nil {
		fn.ReturnType = collapse(r[1])
	}
	if l := reFuncLang.FindStringSubmatch(header + " " + trailer); l != nil {
		fn.Language = strings.ToLower(l[1])
	}
	b.mergeFunction(fn)
	return nil
}

// ---------------------------------------------------------------------
// 3. Clause parsing
// ---------------------------------------------------------------------

var columnKeywords = map[string]bool{
	"NOT": true, "NULL": true, "DEFAULT": true, "PRIMARY": true, "REFERENCES": true,
	"UNIQUE": true, "CHECK": true, "CONSTRAINT": true, "GENERATED": true, "COLLATE": true,
}

func isColumnKeyword(tok string) bool {
	u := strings.ToUpper(tok)
	if columnKeywords[u] {
		return true
	}
	return strings.HasPrefix(u, "CHECK(") || strings.HasPrefix(u, "REFERENCES(") || strings.HasPrefix(u, "UNIQUE(")
}

// isConstraintClause classifies a table-body clause as a constraint rather than a column.
func isConstraintClause(clause string) bool {
	toks := fields(clause)
	if len(toks) == 0 {
		return false
	}
	first := strings.ToUpper(toks[0])
	if first == "CONSTRAINT" {
		return true
	}
	for _, kw := range []string{"PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "EXCLUDE", "LIKE"} {
		if first == kw || strings.HasPrefix(first, kw+"(") {
			return true
		}
	}
	return false
}

// parseConstraintClause parses "[CONSTRAINT name] PRIMARY KEY|FOREIGN KEY|UNIQUE|CHECK ...".
// Unsupported kinds (EXCLUDE, LIKE) yield nil.
func parseConstraintClause(table, clause string, n int) *ConstraintMetadata {
	body := strings.TrimSpace(clause)
	name := ""
	if toks := fields(body); len(toks) >= 2 && strings.EqualFold(toks[0], "CONSTRAINT") {
		name = normalizeIdent(toks[1])
		rest := body[len(toks[0]):]
		idx := strings.Index(rest, toks[1]) + len(toks[1])
		body = strings.TrimSpace(rest[idx:])
	}

	switch {
	case rePKClause.MatchString(body):
		m := rePKClause.FindStringSubmatch(body)
		c := &ConstraintMetadata{Name: name, Type: PrimaryKey, Columns: identList(m[1])}
		if c.Name == "" {
			c.Name = table + "_pkey"
		}
		return c
	case reUniqueCl.MatchString(body):
		m := reUniqueCl.FindStringSubmatch(body)
		c := &ConstraintMetadata{Name: name, Type: Unique, Columns: identList(m[1])}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s_%s_key", table, strings.Join(c.Columns, "_"))
		}
		return c
	case reFKClause.MatchString(body):
		m := reFKClause.FindStringSubmatch(body)
		c := &ConstraintMetadata{
			Name:            name,
			Type:            ForeignKey,
			Columns:         identList(m[1]),
			ReferencedTable: normalizeIdent(m[2]),
		}
		if strings.TrimSpace(m[3]) != "" {
			c.ReferencedColumns = identList(m[3])
		}
		if d := reOnDelete.FindStringSubmatch(m[4]); d != nil {
			c.OnDelete = action(d[1])
		}
		if u := reOnUpdate.FindStringSubmatch(m[4]); u != nil {
			c.OnUpdate = action(u[1])
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s_%s_fkey", table, strings.Join(c.Columns, "_"))
		}
		return c
	case strings.HasPrefix(strings.ToUpper(body), "CHECK"):
		open := strings.IndexByte(body, '(')
		if open < 0 {
			return nil
		}
		end := findClosingParen(body, open)
		if end < 0 {
			return nil
		}
		c := &ConstraintMetadata{Name: name, Type: Check, Expression: collapse(body[open+1 : end])}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s_check%d", table, n+1)
		}
		return c
	}
	return nil
}

// parseColumnClause parses a column definition and returns any inline
// constraints (PRIMARY KEY, UNIQUE, REFERENCES, CHECK) as table constraints.
func parseColumnClause(table, clause string) (*ColumnMetadata, []*ConstraintMetadata) {
	toks := fields(clause)
	if len(toks) < 2 {
		return nil, nil
	}
	col := &ColumnMetadata{Name: normalizeIdent(toks[0]), Nullable: true}
	var inline []*ConstraintMetadata

	i := 1
	var typeParts []string
	for i < len(toks) && !isColumnKeyword(toks[i]) {
		typeParts = append(typeParts, toks[i])
		i++
	}
	col.Type = strings.ReplaceAll(strings.Join(typeParts, " "), " (", "(")
	if t := strings.ToLower(col.Type); t == "serial" || t == "bigserial" || t == "smallserial" {
		col.IsIdentity = true
	}

	for i < len(toks) {
		kw := strings.ToUpper(toks[i])
		switch {
		case kw == "NOT" && i+1 < len(toks) && strings.EqualFold(toks[i+1], "NULL"):
			col.Nullable = false
			i += 2
		case kw == "NULL":
			col.Nullable = true
			i++
		case kw == "DEFAULT":
			i++
			var expr []string
			if i < len(toks) && strings.EqualFold(toks[i], "NULL") {
				expr = append(expr, toks[i])
				i++
			}
			for i < len(toks) && !isColumnKeyword(toks[i]) {
				expr = append(expr, toks[i])
				i++
			}
			col.Default = strings.Join(expr, " ")
		case kw == "PRIMARY":
			col.IsPrimaryKey = true
			col.Nullable = false
			inline = append(inline, &ConstraintMetadata{Name: table + "_pkey", Type: PrimaryKey, Columns: []string{col.Name}})
			i += 2
		case kw == "UNIQUE" || strings.HasPrefix(kw, "UNIQUE("):
			col.IsUnique = true
			inline = append(inline, &ConstraintMetadata{Name: fmt.Sprintf("%s_%s_key", table, col.Name), Type: Unique, Columns: []string{col.Name}})
			i++
		case kw == "CONSTRAINT" || kw == "COLLATE":
			i += 2
		case kw == "CHECK" || strings.HasPrefix(kw, "CHECK("):
			expr := toks[i]
			if kw == "CHECK" && i+1 < len(toks) && strings.HasPrefix(toks[i+1], "(") {
				i++
				expr = toks[i]
			}
			expr = strings.TrimPrefix(strings.TrimPrefix(expr, "CHECK"), "check")
			inline = append(inline, &ConstraintMetadata{
				Name:       fmt.Sprintf("%s_%s_check", table, col.Name),
				Type:       Check,
				Columns:    []string{col.Name},
				Expression: strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(expr), "("), ")"),
			})
			i++
		case kw == "REFERENCES" || strings.HasPrefix(kw, "REFERENCES("):
			ref := &Reference{Column: "id"}
			target := ""
			if kw == "REFERENCES" {
				i++
				if i < len(toks) {
					target = toks[i]
				}
			} else {
				target = toks[i][len("REFERENCES"):]
			}
			if p := strings.IndexByte(target, '('); p >= 0 {
				ref.Column = normalizeIdent(strings.Trim(target[p:], "()"))
				target = target[:p]
			} else if i+1 < len(toks) && strings.HasPrefix(toks[i+1], "(") {
				i++
				ref.Column = normalizeIdent(strings.Trim(toks[i], "()"))
			}
			ref.Table = normalizeIdent(target)
			i++
			for i+2 < len(toks) && strings.EqualFold(toks[i], "ON") {
				event := strings.ToUpper(toks[i+1])
				act := strings.ToUpper(toks[i+2])
				i += 3
				if (act == "SET" || act == "NO") && i < len(toks) {
					act += " " + strings.ToUpper(toks[i])
					i++
				}
				if event == "DELETE" {
					ref.OnDelete = act
				} else if event == "UPDATE" {
					ref.OnUpdate = act
				}
			}
			col.IsForeignKey = true
			col.References = ref
			inline = append(inline, &ConstraintMetadata{
				Name:              fmt.Sprintf("%s_%s_fkey", table, col.Name),
				Type:              ForeignKey,
				Columns:           []string{col.Name},
				ReferencedTable:   ref.Table,
				ReferencedColumns: []string{ref.Column},
				OnDelete:          ref.OnDelete,
				OnUpdate:          ref.OnUpdate,
			})
		case kw == "GENERATED":
			i++
			for i < len(toks) && !isColumnKeyword(toks[i]) {
				if strings.EqualFold(toks[i], "IDENTITY") {
					col.IsIdentity = true
				}
				i++
			}
		default:
			i++
		}
	}
	return col, inline
}

// appendConstraint keeps the first constraint of a given name.
func appendConstraint(list []*ConstraintMetadata, c *ConstraintMetadata) []*ConstraintMetadata {
	for _, existing := range list {
		if strings.EqualFold(existing.Name, c.Name) {
			return list
		}
	}
	return append(list, c)
}
