package logger

import "go.uber.org/zap"

// Field constructors shared by the pipeline packages.

func Session(id string) zap.Field { return zap.String("session", id) }
func View(v int) zap.Field { return zap.Int("view", v) }
func Hit(h int) zap.Field { return zap.Int("hit", h) }
func Step(s int) zap.Field { return zap.Int("step", s) }
func Heat(h float64) zap.Field { return zap.Float64("heat", h) }
func Coverage(c float64) zap.Field { return zap.Float64("coverage", c) }
func Mesh(path string) zap.Field { return zap.String("mesh", path) }
