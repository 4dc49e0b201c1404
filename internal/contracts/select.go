package contracts

import "fmt"

// Select returns the commands whose value is a C, keeping their signers.
func Select[C CommandData](commands []AuthenticatedObject[CommandData]) []AuthenticatedObject[C] {
	var out []AuthenticatedObject[C]

	for _, cmd := range commands {
		if v, ok := cmd.Value.(C); ok {
			out = append(out, withValue(cmd, v))
		}
	}

	return out
}

// Generalize converts typed commands back to the CommandData form.
func Generalize[C CommandData](commands []AuthenticatedObject[C]) []AuthenticatedObject[CommandData] {
	out := make([]AuthenticatedObject[CommandData], len(commands))

	for i, cmd := range commands {
		out[i] = withValue[C, CommandData](cmd, cmd.Value)
	}

	return out
}

// RequireSingleCommand returns the only command of type C.
func RequireSingleCommand[C CommandData](commands []AuthenticatedObject[CommandData]) (AuthenticatedObject[C], error) {
	matched := Select[C](commands)

	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		var zero AuthenticatedObject[C]
		return zero, fmt.Errorf("%w: %T", ErrMissingCommand, zero.Value)
	default:
		var zero AuthenticatedObject[C]
		return zero, fmt.Errorf("%w: %T", ErrMultipleCommands, zero.Value)
	}
}

// CommandTypes returns the set of command types present.
func CommandTypes[C CommandData](commands []AuthenticatedObject[C]) map[CommandType]struct{} {
	types := make(map[CommandType]struct{}, len(commands))

	for _, cmd := range commands {
		types[cmd.Value.CommandType()] = struct{}{}
	}

	return types
}
