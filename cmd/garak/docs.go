package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           garak ggml API
// @version         1.0
// @description     HTTP API for driving local ggml/gguf model runners.
//
// @contact.name   garak maintainers
// @contact.url    https://github.com/Sunforger/garak
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
