package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Convoy/internal/domain"
)

// Vars — контекст подстановки переменных в дескриптор.
//
// Значения ищутся сначала в Inputs (переданных при развёртывании),
// затем в Env (окружение процесса оркестратора).
type Vars struct {
	// Inputs — входные параметры развёртывания.
	Inputs map[string]string

	// Env — переменные окружения.
	Env map[string]string
}

// NewVars создаёт контекст подстановки с входными параметрами.
func NewVars(inputs map[string]string) *Vars {
	if inputs == nil {
		inputs = make(map[string]string)
	}
	return &Vars{
		Inputs: inputs,
		Env:    make(map[string]string),
	}
}

// SetEnv устанавливает переменную окружения.
func (v *Vars) SetEnv(key, value string) {
	v.Env[key] = value
}

// Lookup ищет значение переменной. Второй результат — найдена ли она.
func (v *Vars) Lookup(name string) (string, bool) {
	if val, ok := v.Inputs[name]; ok {
		return val, true
	}
	if val, ok := v.Env[name]; ok {
		return val, true
	}
	return "", false
}

// Interpolate подставляет переменные в строку.
//
// Поддерживаемый синтаксис:
//
//	${VAR}           — значение переменной; ошибка, если не задана
//	${VAR:-default}  — значение переменной либо default
//	$$               — литеральный символ $
//
// Строки без '$' возвращаются как есть.
func Interpolate(s string, vars *Vars) (string, error) {
	if !strings.ContainsRune(s, '$') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}

		// '$' — последний символ строки
		if i+1 >= len(s) {
			return "", fmt.Errorf("%w: dangling '$' at end of %q", ErrBadInterpolation, s)
		}

		switch s[i+1] {
		case '$':
			b.WriteByte('$')
			i += 2

		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated ${ in %q", ErrBadInterpolation, s)
			}
			expr := s[i+2 : i+2+end]

			value, err := resolve(expr, vars)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += 2 + end + 1

		default:
			return "", fmt.Errorf("%w: expected '{' or '$' after '$' in %q", ErrBadInterpolation, s)
		}
	}

	return b.String(), nil
}

// resolve вычисляет выражение внутри ${...}.
func resolve(expr string, vars *Vars) (string, error) {
	name := expr
	def := ""
	hasDefault := false

	if idx := strings.Index(expr, ":-"); idx >= 0 {
		name = expr[:idx]
		def = expr[idx+2:]
		hasDefault = true
	}

	if name == "" {
		return "", fmt.Errorf("%w: empty variable name in ${%s}", ErrBadInterpolation, expr)
	}

	if value, ok := vars.Lookup(name); ok {
		return value, nil
	}

	if hasDefault {
		return def, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUndefinedVariable, name)
}

// InterpolateSpec подставляет переменные во все поля дескриптора,
// где это имеет смысл: environment, command, цели healthcheck,
// host-пути монтирований.
//
// Возвращает глубокую копию — исходный дескриптор не модифицируется.
func InterpolateSpec(spec *domain.StackSpec, vars *Vars) (*domain.StackSpec, error) {
	result := *spec
	result.Services = make([]domain.ServiceDef, len(spec.Services))

	for i := range spec.Services {
		svc := spec.Services[i]

		if len(svc.Environment) > 0 {
			env := make(map[string]string, len(svc.Environment))
			for key, val := range svc.Environment {
				rendered, err := Interpolate(val, vars)
				if err != nil {
					return nil, NewValidationError(svc.Name, "environment",
						fmt.Sprintf("variable %s: %v", key, err), err)
				}
				env[key] = rendered
			}
			svc.Environment = env
		}

		if len(svc.Command) > 0 {
			cmd := make([]string, len(svc.Command))
			for j, arg := range svc.Command {
				rendered, err := Interpolate(arg, vars)
				if err != nil {
					return nil, NewValidationError(svc.Name, "command", err.Error(), err)
				}
				cmd[j] = rendered
			}
			svc.Command = cmd
		}

		if svc.Healthcheck != nil {
			hc := *svc.Healthcheck
			rendered, err := Interpolate(hc.Target, vars)
			if err != nil {
				return nil, NewValidationError(svc.Name, "healthcheck", err.Error(), err)
			}
			hc.Target = rendered
			svc.Healthcheck = &hc
		}

		if len(svc.Mounts) > 0 {
			mounts := make([]domain.MountDef, len(svc.Mounts))
			for j, m := range svc.Mounts {
				rendered, err := Interpolate(m.Source, vars)
				if err != nil {
					return nil, NewValidationError(svc.Name, "mounts", err.Error(), err)
				}
				m.Source = rendered
				mounts[j] = m
			}
			svc.Mounts = mounts
		}

		result.Services[i] = svc
	}

	return &result, nil
}
