package dispatch

import (
	"github.com/ipfs/go-cid"
)

// CodeLoader allows you to load an actor's code based on its name or code id.
type CodeLoader struct {
	byName map[string]Actor
	byCode map[cid.Cid]Actor
}

// GetActorImpl returns the actor installed from the code block with the given name.
func (cl CodeLoader) GetActorImpl(name string) (Dispatcher, bool) {
	actor, ok := cl.byName[name]
	if !ok {
		return nil, false
	}
	return NewDispatcher(actor), true
}

// GetActorByCode returns the actor with the given code id.
func (cl CodeLoader) GetActorByCode(code cid.Cid) (Actor, bool) {
	actor, ok := cl.byCode[code]
	return actor, ok
}

// Actors returns every registered actor.
func (cl CodeLoader) Actors() []Actor {
	out := make([]Actor, 0, len(cl.byName))
	for _, a := range cl.byName {
		out = append(out, a)
	}
	return out
}

// CodeLoaderBuilder helps you build a CodeLoader.
type CodeLoaderBuilder struct {
	actors map[string]Actor
}

// NewBuilder creates a builder to generate a code loader.
func NewBuilder() *CodeLoaderBuilder {
	return &CodeLoaderBuilder{
		actors: map[string]Actor{},
	}
}

// Add lets you add an actor dispatch table for a given code name. A later registration under the
// same name replaces the earlier one.
func (b *CodeLoaderBuilder) Add(actor Actor) *CodeLoaderBuilder {
	b.actors[actor.Name()] = actor
	return b
}

// AddMany registers several actors.
func (b *CodeLoaderBuilder) AddMany(actors ...Actor) *CodeLoaderBuilder {
	for _, a := range actors {
		b.Add(a)
	}
	return b
}

// Build builds the code loader.
func (b *CodeLoaderBuilder) Build() CodeLoader {
	cl := CodeLoader{
		byName: make(map[string]Actor, len(b.actors)),
		byCode: make(map[cid.Cid]Actor, len(b.actors)),
	}
	for name, a := range b.actors {
		cl.byName[name] = a
		cl.byCode[Code(a)] = a
	}
	return cl
}
