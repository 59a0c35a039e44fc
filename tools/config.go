package tools

import "context"

// Config class for tools within the financial agents toolset
type Config struct {
	// title the default title of the tool
	title string
	// description the default description of the tool
	description string
	startHook   func(ctx context.Context, tool string, input any)
	endHook     func(ctx context.Context, tool string, input any, output any)
	errorHook   func(ctx context.Context, tool string, input any, err error)
}

func (c *Config) SetTitle(v string) {
	c.title = v
}

func (c Config) Title() string {
	return c.title
}

func (c *Config) SetDescription(v string) {
	c.description = v
}

func (c Config) Description() string {
	return c.description
}

func (c *Config) SetStartHook(fn func(context.Context, string, any)) {
	c.startHook = fn
}

func (c *Config) SetEndHook(fn func(context.Context, string, any, any)) {
	c.endHook = fn
}

func (c *Config) SetErrorHook(fn func(context.Context, string, any, error)) {
	c.errorHook = fn
}

// OnStart fires the start hook if registered
func (c Config) OnStart(ctx context.Context, input any) {
	if fn := c.startHook; fn != nil {
		fn(ctx, c.title, input)
	}
}

// OnEnd fires the end hook if registered
func (c Config) OnEnd(ctx context.Context, input any, output any) {
	if fn := c.endHook; fn != nil {
		fn(ctx, c.title, input, output)
	}
}

// OnError fires the error hook if registered
func (c Config) OnError(ctx context.Context, input any, err error) {
	if fn := c.errorHook; fn != nil {
		fn(ctx, c.title, input, err)
	}
}
