package trending

const trendingHTML = `<!DOCTYPE html>
<html><body>
<article class="Box-row">
  <h2 class="h3 lh-condensed"><a href="/acme/rocket">acme / rocket</a></h2>
  <p class="col-9 color-fg-muted my-1 pr-4">
    A fast and reliable framework for building web applications with a friendly developer experience.
  </p>
  <div class="f6 color-fg-muted mt-2">
    <span itemprop="programmingLanguage">Go</span>
    <a href="/acme/rocket/stargazers">12,345</a>
    <a href="/acme/rocket/forks">678</a>
    <span class="d-inline-block float-sm-right">321 stars today</span>
  </div>
</article>
<article class="Box-row">
  <h2 class="h3 lh-condensed"><a href="/beta/tool">beta / tool</a></h2>
  <div class="f6 color-fg-muted mt-2">
    <a href="/beta/tool/stargazers">lots</a>
  </div>
</article>
</body></html>`

const repoHTML = `<!DOCTYPE html>
<html><body>
<a href="/acme/rocket/blob/main/LICENSE" title="License"> MIT license </a>
<nav>
  <a href="/acme/rocket/issues"><span>Issues</span><span class="Counter" title="1,024">1k</span></a>
</nav>
<div class="BorderGrid-cell">
  <h2><a class="Link--primary" href="/acme/rocket/graphs/contributors">Contributors <span class="Counter" title="42">42</span></a></h2>
  <ul class="list-style-none d-flex flex-wrap mb-n2">
    <li><a href="https://github.com/alice/">alice</a></li>
    <li><a href="https://github.com/bob">bob</a></li>
  </ul>
</div>
</body></html>`
