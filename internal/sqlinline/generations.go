package sqlinline

const QInsertGeneration = `--sql 38e12443-a7a6-4b6a-971c-9727bb9dc48c
insert into generations (prompt, width, height, steps, n, image_url)
values ($1::text, $2::int, $3::int, $4::int, $5::int, $6::text)
returning id;
`

const QSelectRecentGenerations = `--sql 587b0ec2-109c-448d-8473-280d358ac92c
select id, prompt, width, height, steps, n, image_url
from generations
order by id desc
limit $1;
`

// QCreateGenerationsTable is idempotent; the API runs it on startup.
const QCreateGenerationsTable = `--sql 0b9f5f3e-4a52-4c1e-9d0e-6c2f7a51e8d4
create table if not exists generations (
  id bigserial primary key,
  prompt text not null,
  width integer not null,
  height integer not null,
  steps integer not null,
  n integer not null,
  image_url text not null,
  created_at timestamptz not null default now()
);
`
