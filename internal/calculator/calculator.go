package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type TokenType string

const (
	Number     TokenType = "number"
	Variable   TokenType = "variable"
	Constant   TokenType = "constant"
	Function   TokenType = "function"
	Operator   TokenType = "operator"
	LeftParen  TokenType = "left_paren"
	RightParen TokenType = "right_paren"
)

// opNeg унарный минус
const opNeg = "neg"

var (
	ErrEmptyExpression    = errors.New("empty expression")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrMismatchedParens   = errors.New("mismatched parentheses")
	ErrInvalidExpression  = errors.New("invalid expression")
	ErrNonFiniteResult    = errors.New("non-finite result")
	ErrUnexpectedVariable = errors.New("unexpected variable x")
)

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// Допустимые функции, тот же набор, что принимает сервис интегрирования
var functions = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"sqrt": math.Sqrt,
	"exp":  math.Exp,
	"log":  math.Log,
	"abs":  math.Abs,
}

var precedence = map[string]int{
	"+":   1,
	"-":   1,
	"*":   2,
	"/":   2,
	opNeg: 3,
	"^":   4,
}

type Token struct {
	Type  TokenType
	Value string
	num   float64
}

type Calculator struct {
	tokens []Token
}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calc вычисляет константное выражение (без x), например "pi/2"
func Calc(expr string) (float64, error) {
	calc := NewCalculator()
	if err := calc.Tokenize(expr); err != nil {
		return 0, fmt.Errorf("tokenization error: %w", err)
	}
	for _, t := range calc.tokens {
		if t.Type == Variable {
			return 0, ErrUnexpectedVariable
		}
	}
	rpn, err := calc.ToRPN()
	if err != nil {
		return 0, fmt.Errorf("RPN conversion error: %w", err)
	}
	return calc.EvaluateRPN(rpn, 0)
}

// Program скомпилированное выражение от x
type Program struct {
	source string
	rpn    []Token
}

// Compile разбирает выражение один раз, чтобы потом вычислять его во многих точках
func Compile(expr string) (*Program, error) {
	calc := NewCalculator()
	if err := calc.Tokenize(expr); err != nil {
		return nil, fmt.Errorf("tokenization error: %w", err)
	}
	rpn, err := calc.ToRPN()
	if err != nil {
		return nil, fmt.Errorf("RPN conversion error: %w", err)
	}
	if err := checkArity(rpn); err != nil {
		return nil, err
	}
	return &Program{source: expr, rpn: rpn}, nil
}

func (p *Program) String() string { return p.source }

func (p *Program) Eval(x float64) (float64, error) {
	return NewCalculator().EvaluateRPN(p.rpn, x)
}

func (c *Calculator) Tokenize(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return ErrEmptyExpression
	}

	c.tokens = []Token{}

	for i := 0; i < len(expr); i++ {
		char := expr[i]

		switch {
		case char == ' ' || char == '\t' || char == '\n':
			continue
		case char == '(':
			c.pushOperand(Token{Type: LeftParen, Value: "("})
		case char == ')':
			c.tokens = append(c.tokens, Token{Type: RightParen, Value: ")"})
		case char == '*' && i+1 < len(expr) && expr[i+1] == '*':
			c.tokens = append(c.tokens, Token{Type: Operator, Value: "^"})
			i++
		case char == '^' || char == '*' || char == '/':
			c.tokens = append(c.tokens, Token{Type: Operator, Value: string(char)})
		case char == '+' || char == '-':
			if c.expectsOperand() {
				if char == '-' {
					c.tokens = append(c.tokens, Token{Type: Operator, Value: opNeg})
				}
				continue
			}
			c.tokens = append(c.tokens, Token{Type: Operator, Value: string(char)})
		case unicode.IsDigit(rune(char)) || char == '.':
			j := scanNumber(expr, i)
			num, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return fmt.Errorf("invalid number: %s", expr[i:j])
			}
			c.pushOperand(Token{Type: Number, Value: expr[i:j], num: num})
			i = j - 1
		case unicode.IsLetter(rune(char)) || char == '_':
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_') {
				j++
			}
			name := strings.ToLower(expr[i:j])
			switch {
			case name == "x":
				c.pushOperand(Token{Type: Variable, Value: name})
			case constants[name] != 0:
				c.pushOperand(Token{Type: Constant, Value: name, num: constants[name]})
			case functions[name] != nil:
				k := j
				for k < len(expr) && expr[k] == ' ' {
					k++
				}
				if k >= len(expr) || expr[k] != '(' {
					return fmt.Errorf("function %s must be followed by '('", name)
				}
				c.pushOperand(Token{Type: Function, Value: name})
			default:
				return fmt.Errorf("unknown identifier: %s", expr[i:j])
			}
			i = j - 1
		default:
			return fmt.Errorf("invalid character: %c", char)
		}
	}

	return nil
}

// scanNumber возвращает конец числа, начинающегося с позиции i, включая экспоненту
func scanNumber(expr string, i int) int {
	j := i
	for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.') {
		j++
	}
	if j < len(expr) && (expr[j] == 'e' || expr[j] == 'E') {
		k := j + 1
		if k < len(expr) && (expr[k] == '+' || expr[k] == '-') {
			k++
		}
		if k < len(expr) && unicode.IsDigit(rune(expr[k])) {
			for k < len(expr) && unicode.IsDigit(rune(expr[k])) {
				k++
			}
			return k
		}
	}
	return j
}

// expectsOperand: следующий + или - будет унарным
func (c *Calculator) expectsOperand() bool {
	if len(c.tokens) == 0 {
		return true
	}
	last := c.tokens[len(c.tokens)-1]
	return last.Type == Operator || last.Type == LeftParen
}

// pushOperand добавляет токен, вставляя неявное умножение: 2x, 2(x+1), (x)(x)
func (c *Calculator) pushOperand(t Token) {
	if len(c.tokens) > 0 {
		switch c.tokens[len(c.tokens)-1].Type {
		case Number, Variable, Constant, RightParen:
			c.tokens = append(c.tokens, Token{Type: Operator, Value: "*"})
		}
	}
	c.tokens = append(c.tokens, t)
}

func (c *Calculator) ToRPN() ([]Token, error) {
	var output []Token
	var stack []Token

	for _, token := range c.tokens {
		switch token.Type {
		case Number, Variable, Constant:
			output = append(output, token)
		case Function, LeftParen:
			stack = append(stack, token)
		case Operator:
			if token.Value == opNeg {
				stack = append(stack, token)
				continue
			}
			for len(stack) > 0 && stack[len(stack)-1].Type == Operator {
				top := precedence[stack[len(stack)-1].Value]
				cur := precedence[token.Value]
				// ^ правоассоциативна
				if top > cur || (top == cur && token.Value != "^") {
					output = append(output, stack[len(stack)-1])
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, token)
		case RightParen:
			foundLeftParen := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.Type == LeftParen {
					foundLeftParen = true
					break
				}
				output = append(output, top)
			}
			if !foundLeftParen {
				return nil, ErrMismatchedParens
			}
			if len(stack) > 0 && stack[len(stack)-1].Type == Function {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.Type == LeftParen || top.Type == Function {
			return nil, ErrMismatchedParens
		}
		output = append(output, top)
	}

	return output, nil
}

// checkArity проверяет, что у каждого оператора достаточно аргументов
func checkArity(rpn []Token) error {
	depth := 0
	for _, token := range rpn {
		switch token.Type {
		case Number, Variable, Constant:
			depth++
		case Function:
			if depth < 1 {
				return ErrInvalidExpression
			}
		case Operator:
			if token.Value == opNeg {
				if depth < 1 {
					return ErrInvalidExpression
				}
				continue
			}
			if depth < 2 {
				return ErrInvalidExpression
			}
			depth--
		}
	}
	if depth != 1 {
		return ErrInvalidExpression
	}
	return nil
}

func (c *Calculator) EvaluateRPN(rpn []Token, x float64) (float64, error) {
	stack := make([]float64, 0, len(rpn))

	for _, token := range rpn {
		switch token.Type {
		case Number, Constant:
			stack = append(stack, token.num)
		case Variable:
			stack = append(stack, x)
		case Function:
			if len(stack) < 1 {
				return 0, ErrInvalidExpression
			}
			stack[len(stack)-1] = functions[token.Value](stack[len(stack)-1])
		case Operator:
			if token.Value == opNeg {
				if len(stack) < 1 {
					return 0, ErrInvalidExpression
				}
				stack[len(stack)-1] = -stack[len(stack)-1]
				continue
			}
			if len(stack) < 2 {
				return 0, ErrInvalidExpression
			}

			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			var result float64
			switch token.Value {
			case "+":
				result = a + b
			case "-":
				result = a - b
			case "*":
				result = a * b
			case "/":
				if b == 0 {
					return 0, ErrDivisionByZero
				}
				result = a / b
			case "^":
				result = math.Pow(a, b)
			}

			stack = append(stack, result)
		}
	}

	if len(stack) != 1 {
		return 0, ErrInvalidExpression
	}
	if math.IsNaN(stack[0]) || math.IsInf(stack[0], 0) {
		return 0, ErrNonFiniteResult
	}

	return stack[0], nil
}
