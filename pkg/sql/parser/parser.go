// pkg/sql/parser/parser.go
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"keel/pkg/sql/lexer"
	"keel/pkg/types"
)

// Parser builds the statement tree from a token stream
type Parser struct {
	lex  *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
}

// New creates a parser for the given SQL input
func New(input string) *Parser {
	p := &Parser{lex: lexer.New(input)}
	// prime cur and peek
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) expect(t lexer.TokenType, what string) error {
	if p.cur.Type != t {
		return fmt.Errorf("expected %s at position %d, found %q", what, p.cur.Pos, p.cur.Literal)
	}
	p.next()
	return nil
}

func (p *Parser) ident(what string) (string, error) {
	if p.cur.Type != lexer.IDENT {
		return "", fmt.Errorf("expected %s at position %d, found %q", what, p.cur.Pos, p.cur.Literal)
	}
	name := p.cur.Literal
	p.next()
	return name, nil
}

// Parse consumes the whole input and returns a Program. Statements are
// separated by semicolons; a trailing semicolon is optional.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}
	for p.cur.Type != lexer.EOF {
		if p.cur.Type == lexer.SEMICOLON {
			p.next()
			continue
		}
		stmnt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmnt)
		if p.cur.Type != lexer.SEMICOLON && p.cur.Type != lexer.EOF {
			return nil, fmt.Errorf("unexpected %q at position %d", p.cur.Literal, p.cur.Pos)
		}
	}
	return prog, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch p.cur.Type {
	case lexer.CREATE:
		return p.parseCreate()
	case lexer.INSERT:
		return p.parseInsert()
	case lexer.DELETE:
		return p.parseDelete()
	case lexer.SELECT:
		return p.parseSelect()
	case lexer.DROP:
		return p.parseDrop()
	case lexer.TRUNCATE:
		return p.parseTruncate()
	case lexer.UPDATE:
		return p.parseUpdate()
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", p.cur.Literal, p.cur.Pos)
	}
}

// CREATE TABLE name (col type [PRIMARY KEY] [NOT NULL], ...)
func (p *Parser) parseCreate() (Statement, error) {
	p.next() // CREATE
	if err := p.expect(lexer.TABLE, "TABLE"); err != nil {
		return nil, err
	}
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LPAREN, "("); err != nil {
		return nil, err
	}

	stmnt := &CreateStmnt{TableName: name}
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		stmnt.Columns = append(stmnt.Columns, col)
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(lexer.RPAREN, ")"); err != nil {
		return nil, err
	}
	return stmnt, nil
}

func (p *Parser) parseColumnDef() (ColumnDef, error) {
	var col ColumnDef
	name, err := p.ident("column name")
	if err != nil {
		return col, err
	}
	col.Name = name

	switch p.cur.Type {
	case lexer.INT_TYPE:
		col.Type = types.TypeInt
	case lexer.REAL_TYPE:
		col.Type = types.TypeReal
	case lexer.TEXT_TYPE:
		col.Type = types.TypeText
	case lexer.BLOB_TYPE:
		col.Type = types.TypeBlob
	default:
		return col, fmt.Errorf("expected column type at position %d, found %q", p.cur.Pos, p.cur.Literal)
	}
	p.next()

	for {
		switch p.cur.Type {
		case lexer.PRIMARY:
			p.next()
			if err := p.expect(lexer.KEY, "KEY"); err != nil {
				return col, err
			}
			col.PrimaryKey = true
		case lexer.NOT:
			p.next()
			if err := p.expect(lexer.NULL_KW, "NULL"); err != nil {
				return col, err
			}
			col.NotNull = true
		default:
			return col, nil
		}
	}
}

// INSERT INTO name (cols) VALUES (literals)
func (p *Parser) parseInsert() (Statement, error) {
	p.next() // INSERT
	if err := p.expect(lexer.INTO, "INTO"); err != nil {
		return nil, err
	}
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	stmnt := &InsertStmnt{TableName: name}

	if err := p.expect(lexer.LPAREN, "("); err != nil {
		return nil, err
	}
	for {
		col, err := p.ident("column name")
		if err != nil {
			return nil, err
		}
		stmnt.Columns = append(stmnt.Columns, col)
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(lexer.RPAREN, ")"); err != nil {
		return nil, err
	}

	if err := p.expect(lexer.VALUES, "VALUES"); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LPAREN, "("); err != nil {
		return nil, err
	}
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmnt.Values = append(stmnt.Values, v)
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(lexer.RPAREN, ")"); err != nil {
		return nil, err
	}
	if len(stmnt.Columns) != len(stmnt.Values) {
		return nil, fmt.Errorf("insert into %s: %d columns but %d values",
			name, len(stmnt.Columns), len(stmnt.Values))
	}
	return stmnt, nil
}

// DELETE FROM name [WHERE cond]
func (p *Parser) parseDelete() (Statement, error) {
	p.next() // DELETE
	if err := p.expect(lexer.FROM, "FROM"); err != nil {
		return nil, err
	}
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	stmnt := &DeleteStmnt{TableName: name}
	if p.cur.Type == lexer.WHERE {
		p.next()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmnt.Where = cond
	}
	return stmnt, nil
}

// SELECT list [FROM source [WHERE ...] [GROUP BY ...] [HAVING ...] [ORDER BY ...] [LIMIT n]]
func (p *Parser) parseSelect() (Statement, error) {
	p.next() // SELECT
	stmnt := &SelectStmnt{Limit: -1}

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmnt.SelectList = append(stmnt.SelectList, item)
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}

	if p.cur.Type != lexer.FROM {
		return stmnt, nil
	}
	p.next()

	src, err := p.parseFromSource()
	if err != nil {
		return nil, err
	}
	stmnt.From = src

	if p.cur.Type == lexer.WHERE {
		p.next()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmnt.Where = cond
	}
	if p.cur.Type == lexer.GROUP {
		p.next()
		if err := p.expect(lexer.BY, "BY"); err != nil {
			return nil, err
		}
		for {
			ref, err := p.parseColumnRef()
			if err != nil {
				return nil, err
			}
			stmnt.GroupBy = append(stmnt.GroupBy, ref)
			if p.cur.Type == lexer.COMMA {
				p.next()
				continue
			}
			break
		}
	}
	if p.cur.Type == lexer.HAVING {
		p.next()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmnt.Having = cond
	}
	if p.cur.Type == lexer.ORDER {
		p.next()
		if err := p.expect(lexer.BY, "BY"); err != nil {
			return nil, err
		}
		for {
			ref, err := p.parseColumnRef()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Column: ref}
			if p.cur.Type == lexer.ASC {
				p.next()
			} else if p.cur.Type == lexer.DESC {
				item.Desc = true
				p.next()
			}
			stmnt.OrderBy = append(stmnt.OrderBy, item)
			if p.cur.Type == lexer.COMMA {
				p.next()
				continue
			}
			break
		}
	}
	if p.cur.Type == lexer.LIMIT {
		p.next()
		if p.cur.Type != lexer.INT {
			return nil, fmt.Errorf("expected LIMIT count at position %d", p.cur.Pos)
		}
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad LIMIT count %q: %w", p.cur.Literal, err)
		}
		stmnt.Limit = n
		p.next()
	}
	return stmnt, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.cur.Type == lexer.STAR {
		p.next()
		return SelectItem{Star: true}, nil
	}
	ref, err := p.parseColumnRef()
	if err != nil {
		return SelectItem{}, err
	}
	return SelectItem{Column: ref}, nil
}

// parseFromSource parses a single source followed by any number of joins,
// producing the left-deep shape: each join's left side is everything parsed
// so far, its right side a base relation.
func (p *Parser) parseFromSource() (FromSource, error) {
	single, err := p.parseSingleSource()
	if err != nil {
		return nil, err
	}
	var src FromSource = single

	for {
		jt, isJoin, err := p.parseJoinType()
		if err != nil {
			return nil, err
		}
		if !isJoin {
			return src, nil
		}
		right, err := p.parseSingleSource()
		if err != nil {
			return nil, err
		}
		join := &Joining{LeftSource: src, RightSource: right, JoinType: jt}
		if p.cur.Type == lexer.ON {
			if jt == JoinCross {
				return nil, fmt.Errorf("CROSS JOIN takes no ON condition (position %d)", p.cur.Pos)
			}
			p.next()
			cond, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			join.Condition = cond
		}
		src = join
	}
}

// parseJoinType consumes a join prefix if present. Returns isJoin=false when
// the next token does not begin a join.
func (p *Parser) parseJoinType() (JoinType, bool, error) {
	switch p.cur.Type {
	case lexer.JOIN:
		p.next()
		return JoinInner, true, nil
	case lexer.INNER:
		p.next()
		if err := p.expect(lexer.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}
		return JoinInner, true, nil
	case lexer.CROSS:
		p.next()
		if err := p.expect(lexer.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}
		return JoinCross, true, nil
	case lexer.LEFT, lexer.RIGHT, lexer.FULL:
		var jt JoinType
		switch p.cur.Type {
		case lexer.LEFT:
			jt = JoinLeftOuter
		case lexer.RIGHT:
			jt = JoinRightOuter
		default:
			jt = JoinFullOuter
		}
		p.next()
		if p.cur.Type == lexer.OUTER {
			p.next()
		}
		if err := p.expect(lexer.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}
		return jt, true, nil
	default:
		return 0, false, nil
	}
}

func (p *Parser) parseSingleSource() (*SingleSource, error) {
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	src := &SingleSource{TableName: name}
	if p.cur.Type == lexer.AS {
		p.next()
		alias, err := p.ident("table alias")
		if err != nil {
			return nil, err
		}
		src.TableAlias = alias
	} else if p.cur.Type == lexer.IDENT {
		src.TableAlias = p.cur.Literal
		p.next()
	}
	return src, nil
}

// DROP TABLE name
func (p *Parser) parseDrop() (Statement, error) {
	p.next() // DROP
	if err := p.expect(lexer.TABLE, "TABLE"); err != nil {
		return nil, err
	}
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	return &DropStmnt{TableName: name}, nil
}

// TRUNCATE [TABLE] name
func (p *Parser) parseTruncate() (Statement, error) {
	p.next() // TRUNCATE
	if p.cur.Type == lexer.TABLE {
		p.next()
	}
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	return &TruncateStmnt{TableName: name}, nil
}

// UPDATE name SET col = literal, ... [WHERE cond]
func (p *Parser) parseUpdate() (Statement, error) {
	p.next() // UPDATE
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	stmnt := &UpdateStmnt{TableName: name}
	if err := p.expect(lexer.SET, "SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.ident("column name")
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.EQ, "="); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmnt.Assignments = append(stmnt.Assignments, Assignment{Column: col, Value: v})
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	if p.cur.Type == lexer.WHERE {
		p.next()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmnt.Where = cond
	}
	return stmnt, nil
}

// parseCondition parses `and_clause (OR and_clause)*`. The grammar admits no
// parentheses, so the parse shape is already disjunctive normal form.
func (p *Parser) parseCondition() (*Condition, error) {
	cond := &Condition{}
	for {
		clause, err := p.parseAndClause()
		if err != nil {
			return nil, err
		}
		cond.AndClauses = append(cond.AndClauses, clause)
		if p.cur.Type == lexer.OR {
			p.next()
			continue
		}
		return cond, nil
	}
}

func (p *Parser) parseAndClause() (AndClause, error) {
	var clause AndClause
	for {
		pred, err := p.parseComparison()
		if err != nil {
			return clause, err
		}
		clause.Predicates = append(clause.Predicates, pred)
		if p.cur.Type == lexer.AND {
			p.next()
			continue
		}
		return clause, nil
	}
}

func (p *Parser) parseComparison() (Comparison, error) {
	var cmp Comparison
	left, err := p.parseOperand()
	if err != nil {
		return cmp, err
	}
	cmp.Left = left

	switch p.cur.Type {
	case lexer.EQ:
		cmp.Operator = OpEqual
	case lexer.NEQ:
		cmp.Operator = OpNotEqual
	case lexer.LT:
		cmp.Operator = OpLess
	case lexer.LTE:
		cmp.Operator = OpLessEqual
	case lexer.GT:
		cmp.Operator = OpGreater
	case lexer.GTE:
		cmp.Operator = OpGreaterEqual
	default:
		return cmp, fmt.Errorf("expected comparison operator at position %d, found %q", p.cur.Pos, p.cur.Literal)
	}
	p.next()

	right, err := p.parseOperand()
	if err != nil {
		return cmp, err
	}
	cmp.Right = right
	return cmp, nil
}

func (p *Parser) parseOperand() (Operand, error) {
	if p.cur.Type == lexer.IDENT {
		ref, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		return ref, nil
	}
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return Literal{Value: v}, nil
}

func (p *Parser) parseColumnRef() (ColumnRef, error) {
	var ref ColumnRef
	name, err := p.ident("column reference")
	if err != nil {
		return ref, err
	}
	if p.cur.Type == lexer.DOT {
		p.next()
		col, err := p.ident("column name")
		if err != nil {
			return ref, err
		}
		ref.Source = name
		ref.Column = col
		return ref, nil
	}
	ref.Column = name
	return ref, nil
}

func (p *Parser) parseLiteral() (types.Value, error) {
	switch p.cur.Type {
	case lexer.INT:
		i, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return types.NewNull(), fmt.Errorf("bad integer literal %q: %w", p.cur.Literal, err)
		}
		p.next()
		return types.NewInt(i), nil
	case lexer.FLOAT:
		f, err := strconv.ParseFloat(p.cur.Literal, 64)
		if err != nil {
			return types.NewNull(), fmt.Errorf("bad real literal %q: %w", p.cur.Literal, err)
		}
		p.next()
		return types.NewReal(f), nil
	case lexer.STRING:
		s := p.cur.Literal
		p.next()
		return types.NewText(s), nil
	case lexer.NULL_KW:
		p.next()
		return types.NewNull(), nil
	default:
		return types.NewNull(), fmt.Errorf("expected literal at position %d, found %q", p.cur.Pos, p.cur.Literal)
	}
}

// exprToString renders an operand back to SQL text
func exprToString(op Operand) string {
	switch o := op.(type) {
	case Literal:
		if o.Value.Type() == types.TypeText {
			return "'" + strings.ReplaceAll(o.Value.Text(), "'", "''") + "'"
		}
		return o.Value.String()
	case ColumnRef:
		return o.String()
	default:
		return ""
	}
}

// ConditionToSQL renders a condition back to SQL text
func ConditionToSQL(cond *Condition) string {
	if cond == nil {
		return ""
	}
	var or []string
	for _, clause := range cond.AndClauses {
		var and []string
		for _, pred := range clause.Predicates {
			and = append(and, exprToString(pred.Left)+" "+pred.Operator.String()+" "+exprToString(pred.Right))
		}
		or = append(or, strings.Join(and, " AND "))
	}
	return strings.Join(or, " OR ")
}
